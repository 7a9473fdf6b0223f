// admin.go - privacy-conscious visitor tracking and the admin area
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const adminCookie = "admin_token"

// Admin owns the admin session token and the salt used to hash visitor IPs.
// Both are regenerated on every start.
type Admin struct {
	store    *Store
	log      *zap.Logger
	username string
	password string
	token    string
	salt     string
	now      func() time.Time

	// pending counts visit writes still running in the background.
	pending sync.WaitGroup
}

func NewAdmin(store *Store, cfg Config, log *zap.Logger) *Admin {
	a := &Admin{
		store:    store,
		log:      log,
		username: cfg.AdminUsername,
		password: cfg.AdminPassword,
		token:    randomToken(),
		salt:     randomToken(),
		now:      time.Now,
	}
	log.Info("admin access available", zap.String("path", "/admin/login"))
	if cfg.devCredentials {
		log.Warn("using default admin credentials; set ADMIN_USERNAME and ADMIN_PASSWORD")
	}
	if gin.Mode() == gin.DebugMode {
		log.Debug("admin token (dev only)", zap.String("token", a.token))
	}
	return a
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// hashIP is stable for a given IP within one run of the server.
func (a *Admin) hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + a.salt))
	return hex.EncodeToString(sum[:])[:16]
}

// trackVisitors records page views with hashed IPs. Static assets, admin
// pages, API calls and DNT requests are not tracked.
func (a *Admin) trackVisitors() gin.HandlerFunc {
	skip := []string{"/static/", "/admin", "/api/", "/hero/", "/notices", "/favicon", "/privacy", "/healthz"}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range skip {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}
		if c.Request.Method != http.MethodGet || c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		hashed, ua, at := a.hashIP(c.ClientIP()), c.GetHeader("User-Agent"), a.now()
		a.pending.Add(1)
		go func() {
			defer a.pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.store.TrackVisit(ctx, hashed, ua, path, at); err != nil {
				a.log.Warn("error recording visitor", zap.Error(err))
			}
		}()
		c.Next()
	}
}

// Wait blocks until every background visit write has finished. Call it
// after the server has stopped accepting requests and before the store
// closes.
func (a *Admin) Wait() {
	a.pending.Wait()
}

// Cleanup removes visitor data older than retention.
func (a *Admin) Cleanup(ctx context.Context, retention time.Duration) {
	n, err := a.store.CleanupVisitors(ctx, retention, a.now())
	if err != nil {
		a.log.Warn("error cleaning up old visitor data", zap.Error(err))
		return
	}
	if n > 0 {
		a.log.Info("privacy cleanup removed old visitor records", zap.Int64("rows", n))
	}
}

func (a *Admin) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *Admin) checkCredentials(username, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(username), []byte(a.username))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(a.password))
	return u&p == 1
}

func (a *Admin) routes(r *gin.Engine, retention time.Duration) {
	r.GET("/privacy", func(c *gin.Context) {
		render(c, http.StatusOK, "privacy.html", gin.H{"title": "Privacy Policy"})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		render(c, http.StatusOK, "admin-login.html", gin.H{"title": "Admin Login"})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		if a.checkCredentials(c.PostForm("username"), c.PostForm("password")) {
			c.SetCookie(adminCookie, a.token, 3600*24, "/admin", "", false, true)
			a.log.Info("admin login successful", zap.String("from", a.hashIP(c.ClientIP())))
			c.Redirect(http.StatusFound, "/admin/dashboard")
			return
		}
		a.log.Warn("failed admin login attempt", zap.String("from", a.hashIP(c.ClientIP())))
		render(c, http.StatusUnauthorized, "admin-login.html", gin.H{
			"title": "Admin Login",
			"error": "Invalid credentials",
		})
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", false, true)
		c.Redirect(http.StatusFound, "/admin/login")
	})

	admin := r.Group("/admin", a.requireAdmin())

	admin.GET("/dashboard", func(c *gin.Context) {
		stats, err := a.store.Stats(c.Request.Context(), a.now())
		if err != nil {
			a.log.Error("error loading admin stats", zap.Error(err))
			render(c, http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}
		render(c, http.StatusOK, "admin-dashboard.html", gin.H{"title": "Dashboard", "stats": stats})
	})

	admin.GET("/api/stats", func(c *gin.Context) {
		stats, err := a.store.Stats(c.Request.Context(), a.now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	admin.GET("/export/stats", func(c *gin.Context) {
		stats, err := a.store.Stats(c.Request.Context(), a.now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		a.log.Info("admin stats exported", zap.String("by", a.hashIP(c.ClientIP())))
		c.JSON(http.StatusOK, stats)
	})

	admin.POST("/privacy/cleanup", func(c *gin.Context) {
		a.Cleanup(c.Request.Context(), retention)
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup complete"})
	})
}
