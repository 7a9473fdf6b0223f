package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedMessage struct {
	draft     ContactDraft
	delivered bool
}

type fakeMessageLog struct {
	mu   sync.Mutex
	msgs []recordedMessage
}

func (f *fakeMessageLog) RecordMessage(_ context.Context, d ContactDraft, delivered bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, recordedMessage{d, delivered})
	return nil
}

var validDraft = ContactDraft{
	Name:    "Ada Lovelace",
	Email:   "ada@example.com",
	Message: "Let's build an engine.",
}

func relayStub(t *testing.T, status int, got *[]ContactDraft) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var d ContactDraft
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&d))
		if got != nil {
			*got = append(*got, d)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestContactService(relay Relay) (*ContactService, *NoticeRegistry, *fakeMessageLog) {
	notices := NewNoticeRegistry(time.Minute)
	log := &fakeMessageLog{}
	return NewContactService(relay, notices, log, zap.NewNop()), notices, log
}

func TestFormRelaySendsJSON(t *testing.T) {
	var got []ContactDraft
	srv := relayStub(t, http.StatusOK, &got)

	err := NewFormRelay(srv.URL).Send(context.Background(), validDraft)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, validDraft, got[0])
}

func TestFormRelayNon2xx(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusInternalServerError, http.StatusBadGateway} {
		srv := relayStub(t, status, nil)
		err := NewFormRelay(srv.URL).Send(context.Background(), validDraft)

		var relayErr *RelayError
		require.True(t, errors.As(err, &relayErr), "status %d", status)
		assert.Equal(t, status, relayErr.StatusCode)
		assert.Contains(t, relayErr.Body, "ok")
	}
}

func TestFormRelayAccepts2xx(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent} {
		srv := relayStub(t, status, nil)
		assert.NoError(t, NewFormRelay(srv.URL).Send(context.Background(), validDraft), "status %d", status)
	}
}

func TestSubmitSuccess(t *testing.T) {
	var got []ContactDraft
	srv := relayStub(t, http.StatusOK, &got)
	svc, notices, msgs := newTestContactService(NewFormRelay(srv.URL))
	defer notices.Close()

	notice, delivered, err := svc.Submit(context.Background(), "v1", validDraft)
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, "Message Sent!", notice.Title)
	assert.False(t, notice.Destructive())

	live := notices.List("v1")
	require.Len(t, live, 1, "exactly one notice")
	assert.Equal(t, notice.ID, live[0].ID)

	require.Len(t, got, 1)
	require.Len(t, msgs.msgs, 1)
	assert.True(t, msgs.msgs[0].delivered)
}

func TestSubmitRejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusServiceUnavailable} {
		srv := relayStub(t, status, nil)
		svc, notices, msgs := newTestContactService(NewFormRelay(srv.URL))

		notice, delivered, err := svc.Submit(context.Background(), "v1", validDraft)
		require.NoError(t, err)
		assert.False(t, delivered)
		assert.Equal(t, "Send failed", notice.Title)
		assert.True(t, notice.Destructive())
		assert.Len(t, notices.List("v1"), 1)
		require.Len(t, msgs.msgs, 1)
		assert.False(t, msgs.msgs[0].delivered)
		notices.Close()
	}
}

func TestSubmitNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc, notices, _ := newTestContactService(NewFormRelay(url))
	defer notices.Close()

	notice, delivered, err := svc.Submit(context.Background(), "v1", validDraft)
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Equal(t, "Network error", notice.Title)
	assert.True(t, notice.Destructive())
	assert.Len(t, notices.List("v1"), 1)
}

func TestSubmitRejectsDraftBlankAfterCleaning(t *testing.T) {
	tests := map[string]ContactDraft{
		"whitespace name":  {Name: "   ", Email: "ada@example.com", Message: "Hello"},
		"markup message":   {Name: "Ada", Email: "ada@example.com", Message: "<b></b>"},
		"script only name": {Name: "<script>alert(1)</script>", Email: "ada@example.com", Message: "Hello"},
		"blank email":      {Name: "Ada", Email: " ", Message: "Hello"},
	}
	for name, draft := range tests {
		t.Run(name, func(t *testing.T) {
			var got []ContactDraft
			srv := relayStub(t, http.StatusOK, &got)
			svc, notices, msgs := newTestContactService(NewFormRelay(srv.URL))
			defer notices.Close()

			_, delivered, err := svc.Submit(context.Background(), "v1", draft)
			assert.ErrorIs(t, err, ErrIncompleteDraft)
			assert.False(t, delivered)
			assert.Empty(t, got, "no relay call")
			assert.Empty(t, notices.List("v1"))
			assert.Empty(t, msgs.msgs)
		})
	}
}

type blockingRelay struct {
	entered chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (b *blockingRelay) Send(ctx context.Context, _ ContactDraft) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func TestSubmitRejectsDuplicateWhileInFlight(t *testing.T) {
	relay := &blockingRelay{entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc, notices, _ := newTestContactService(relay)
	defer notices.Close()

	done := make(chan bool, 1)
	go func() {
		_, delivered, _ := svc.Submit(context.Background(), "v1", validDraft)
		done <- delivered
	}()
	<-relay.entered

	_, _, err := svc.Submit(context.Background(), "v1", validDraft)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(relay.release)
	assert.True(t, <-done)
	assert.Equal(t, 1, relay.calls)
	assert.Len(t, notices.List("v1"), 1, "the rejected duplicate adds no notice")

	// Another visitor is not blocked, and v1 can send again afterwards.
	relay2 := &blockingRelay{entered: make(chan struct{}, 2), release: make(chan struct{})}
	close(relay2.release)
	svc2, notices2, _ := newTestContactService(relay2)
	defer notices2.Close()
	_, _, err = svc2.Submit(context.Background(), "v1", validDraft)
	assert.NoError(t, err)
	_, _, err = svc2.Submit(context.Background(), "v1", validDraft)
	assert.NoError(t, err)
}

func TestDraftClean(t *testing.T) {
	d := ContactDraft{
		Name:    "  <b>Ada</b> ",
		Email:   " ada@example.com ",
		Message: "Hi <script>alert(1)</script>there",
	}.Clean()
	assert.Equal(t, "Ada", d.Name)
	assert.Equal(t, "ada@example.com", d.Email)
	assert.Equal(t, "Hi there", d.Message)

	d = ContactDraft{Message: "Let's talk & see if 2 < 3"}.Clean()
	assert.Equal(t, "Let's talk & see if 2 < 3", d.Message)
}
