package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/campusdesk/campusdesk/internal/jobs"
	"github.com/campusdesk/campusdesk/internal/requests"
	_ "github.com/campusdesk/campusdesk/testing"
)

type captureMailer struct {
	sent []Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decisionTask(t *testing.T, p DecisionPayload) *asynq.Task {
	t.Helper()
	task, err := NewDecisionTask(p)
	require.NoError(t, err)
	return task
}

func samplePayload(status string) DecisionPayload {
	return DecisionPayload{
		RequestID:      uuid.NewString(),
		RequesterName:  "Ana Cruz",
		RequesterEmail: "ana@example.edu",
		RoomName:       "Room 101",
		RequestedDate:  "2026-11-02",
		TimeStart:      "09:00",
		TimeEnd:        "10:30",
		Status:         status,
	}
}

func TestDecisionMailJobSendsApproval(t *testing.T) {
	mailer := &captureMailer{}
	job := NewDecisionMailJob(mailer, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), decisionTask(t, samplePayload("approved"))))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ana@example.edu", mailer.sent[0].To)
	assert.Equal(t, "Room request approved: Room 101", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].Body, "on 2026-11-02 from 09:00 to 10:30 has been approved")
}

func TestDecisionMailJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewDecisionMailJob(&captureMailer{}, quietLogger(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskRequestDecision, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	bad := samplePayload("declined")
	bad.RequesterEmail = "not-an-address"
	err = job.Handle(context.Background(), decisionTask(t, bad))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDecisionMailJobRetriesOnSendFailure(t *testing.T) {
	boom := errors.New("relay down")
	job := NewDecisionMailJob(&captureMailer{err: boom}, quietLogger(), nil)

	err := job.Handle(context.Background(), decisionTask(t, samplePayload("declined")))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestDecisionMessageDeclinedFallsBackForMissingRoom(t *testing.T) {
	p := samplePayload("declined")
	p.RoomName = ""
	msg := DecisionMessage(p)
	assert.Equal(t, "Room request declined: the requested room", msg.Subject)
	assert.Contains(t, msg.Body, "submit a new request")
}

func TestSMTPMailerComposesPlainText(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1025, From: "no-reply@campusdesk.local"})
	mailer.now = func() time.Time { return time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg string
	mailer.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.Equal(t, "no-reply@campusdesk.local", from)
		return nil
	}

	err := mailer.Send(context.Background(), Message{To: "ana@example.edu", Subject: "Hi", Body: "line one\nline two"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1025", gotAddr)
	assert.Equal(t, []string{"ana@example.edu"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Hi\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nline one\r\nline two"))
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1025})
	mailer.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	err := mailer.Send(context.Background(), Message{To: "a@b.c\r\nBcc: x@y.z", Subject: "Hi"})
	assert.Error(t, err)
}

type stubPruner struct {
	olderThan time.Duration
	removed   int64
	err       error
}

func (s *stubPruner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.removed, s.err
}

func TestIdempotencyCleanupUsesPayloadRetention(t *testing.T) {
	store := &stubPruner{removed: 3}
	job := NewIdempotencyCleanupJob(store, 168*time.Hour, quietLogger(), nil)

	task, err := NewIdempotencyCleanupTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 24*time.Hour, store.olderThan)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, 168*time.Hour, store.olderThan)
}

func TestIdempotencyCleanupPropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	job := NewIdempotencyCleanupJob(&stubPruner{err: boom}, time.Hour, quietLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil))
	assert.ErrorIs(t, err, boom)
}

func TestClientNotifyDecisionEnqueuesOncePerRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	req := requests.RoomRequest{
		ID:             uuid.New(),
		RoomName:       "Room 101",
		RequesterName:  "Ana Cruz",
		RequesterEmail: "ana@example.edu",
		RequestedDate:  "2026-11-02",
		Status:         requests.StatusApproved,
	}
	ctx := context.Background()
	require.NoError(t, client.NotifyDecision(ctx, req))
	require.NoError(t, client.NotifyDecision(ctx, req))

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TaskRequestDecision+":"+req.ID.String(), pending[0])
}

func TestClientNotifyDecisionIgnoresPending(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.NotifyDecision(context.Background(), requests.RoomRequest{ID: uuid.New(), Status: requests.StatusPending}))
	assert.False(t, mr.Exists("asynq:{default}:pending"))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthReportsQueueDepth(t *testing.T) {
	h := NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 4, Retry: 1, Archived: 2}}, quietLogger())
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, queueHealth{Queue: "default", Pending: 4, Retry: 1, Failed: 2}, body)
}

func TestHealthUnavailableOnInspectorError(t *testing.T) {
	h := NewHandler(stubInspector{err: errors.New("redis down")}, quietLogger())
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
