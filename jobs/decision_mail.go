package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/campusdesk/campusdesk/internal/jobs"
)

// DecisionMailJob mails requesters once their request is approved or declined.
type DecisionMailJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDecisionMailJob initialises the handler.
func NewDecisionMailJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DecisionMailJob {
	return &DecisionMailJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskRequestDecision tasks. Malformed payloads are not retried.
func (j *DecisionMailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("decision mail: handler not configured")
	}
	var payload DecisionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decision mail: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if _, perr := mail.ParseAddress(payload.RequesterEmail); perr != nil {
		return fmt.Errorf("decision mail: bad recipient %q: %w", payload.RequesterEmail, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskRequestDecision)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(
		slog.String("request_id", payload.RequestID),
		slog.String("status", payload.Status),
	)
	if err = j.Mailer.Send(ctx, DecisionMessage(payload)); err != nil {
		j.Metrics.CountMail("failed")
		logger.Error("decision mail failed", slog.Any("error", err))
		return err
	}
	j.Metrics.CountMail("sent")
	logger.Info("decision mail sent")
	return nil
}

func (j *DecisionMailJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// DecisionMessage renders the requester-facing e-mail for payload.
func DecisionMessage(p DecisionPayload) Message {
	outcome := "declined"
	if p.Status == "approved" {
		outcome = "approved"
	}
	room := strings.Join(strings.Fields(p.RoomName), " ")
	if room == "" {
		room = "the requested room"
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", p.RequesterName)
	fmt.Fprintf(&body, "Your request for %s on %s from %s to %s has been %s.\n",
		room, p.RequestedDate, p.TimeStart, p.TimeEnd, outcome)
	if outcome == "declined" {
		body.WriteString("Please submit a new request if you still need a room.\n")
	}
	body.WriteString("\nCampus Facilities\n")
	return Message{
		To:      p.RequesterEmail,
		Subject: fmt.Sprintf("Room request %s: %s", outcome, room),
		Body:    body.String(),
	}
}
