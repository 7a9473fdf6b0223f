package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ContactDraft is the contact form as the visitor filled it in.
type ContactDraft struct {
	Name    string `json:"name" form:"name" binding:"required,max=200"`
	Email   string `json:"email" form:"email" binding:"required,email,max=320"`
	Message string `json:"message" form:"message" binding:"required,max=5000"`
}

var plainText = bluemonday.StrictPolicy()

// Clean strips markup and surrounding whitespace from every field. The
// result is plain text, so the entities the sanitizer emits are decoded.
func (d ContactDraft) Clean() ContactDraft {
	return ContactDraft{
		Name:    stripMarkup(d.Name),
		Email:   strings.TrimSpace(d.Email),
		Message: stripMarkup(d.Message),
	}
}

// Complete reports whether every field still has text once cleaned.
func (d ContactDraft) Complete() bool {
	return d.Name != "" && d.Email != "" && d.Message != ""
}

func stripMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(s)))
}

// RelayError is a non-2xx answer from the form relay.
type RelayError struct {
	StatusCode int
	Body       string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("form relay answered %d", e.StatusCode)
}

// Relay forwards a contact draft to wherever messages are delivered.
type Relay interface {
	Send(ctx context.Context, draft ContactDraft) error
}

// FormRelay posts drafts as JSON to a third-party form endpoint. It makes a
// single attempt; the caller's context bounds how long that may take.
type FormRelay struct {
	URL    string
	Client *http.Client
}

func NewFormRelay(url string) *FormRelay {
	return &FormRelay{URL: url, Client: &http.Client{}}
}

func (r *FormRelay) Send(ctx context.Context, draft ContactDraft) (err error) {
	body, err := json.Marshal(draft)
	if err != nil {
		err = errors.Wrap(err, "failed to encode contact draft")
		return err
	}

	var req *http.Request
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		err = errors.Wrap(err, "failed to create relay request")
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var resp *http.Response
	resp, err = r.Client.Do(req)
	if err != nil {
		err = errors.Wrap(err, "failed to reach form relay")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err = &RelayError{StatusCode: resp.StatusCode, Body: string(snippet)}
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ErrSubmissionInFlight is returned while the same visitor already has a
// submission pending.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

// ErrIncompleteDraft is returned when a field is empty after cleaning, for
// example a name of only spaces or a message of only markup.
var ErrIncompleteDraft = errors.New("contact draft has an empty field")

// MessageLog records messages that went through the relay.
type MessageLog interface {
	RecordMessage(ctx context.Context, draft ContactDraft, delivered bool) error
}

// ContactService relays drafts and turns the outcome into a notice.
type ContactService struct {
	relay    Relay
	notices  *NoticeRegistry
	messages MessageLog
	log      *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewContactService(relay Relay, notices *NoticeRegistry, messages MessageLog, log *zap.Logger) *ContactService {
	return &ContactService{
		relay:    relay,
		notices:  notices,
		messages: messages,
		log:      log,
		inFlight: make(map[string]struct{}),
	}
}

// Submit relays draft on behalf of visitor. It returns the notice shown to
// the visitor and whether the draft was delivered; the caller clears the
// form only when delivered is true.
func (s *ContactService) Submit(ctx context.Context, visitor string, draft ContactDraft) (notice Notice, delivered bool, err error) {
	draft = draft.Clean()
	if !draft.Complete() {
		err = ErrIncompleteDraft
		return notice, false, err
	}
	if !s.acquire(visitor) {
		err = ErrSubmissionInFlight
		return notice, false, err
	}
	defer s.release(visitor)

	sendErr := s.relay.Send(ctx, draft)

	var relayErr *RelayError
	switch {
	case sendErr == nil:
		delivered = true
		notice = s.notices.Push(visitor, "Message Sent!", "Thanks, I'll reply soon.", SeverityDefault)
		s.log.Info("contact message relayed", zap.String("visitor", visitor))
	case errors.As(sendErr, &relayErr):
		notice = s.notices.Push(visitor, "Send failed", "Please try again later.", SeverityDestructive)
		s.log.Warn("form relay rejected message",
			zap.Int("status", relayErr.StatusCode),
			zap.String("body", relayErr.Body))
	default:
		notice = s.notices.Push(visitor, "Network error", "Check your connection.", SeverityDestructive)
		s.log.Error("form relay unreachable", zap.Error(sendErr))
	}

	if s.messages != nil {
		if recErr := s.messages.RecordMessage(ctx, draft, delivered); recErr != nil {
			s.log.Warn("failed to record contact message", zap.Error(recErr))
		}
	}
	return notice, delivered, nil
}

func (s *ContactService) acquire(visitor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[visitor]; busy {
		return false
	}
	s.inFlight[visitor] = struct{}{}
	return true
}

func (s *ContactService) release(visitor string) {
	s.mu.Lock()
	delete(s.inFlight, visitor)
	s.mu.Unlock()
}
