package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/repository"
	"checkin-desk/internal/store"

	"go.uber.org/zap"
)

// WebhookSender posts the post-commit webhook
type WebhookSender interface {
	Send(ctx context.Context, url string, payload WebhookPayload) error
}

// SummaryMailer mails the organization's summary report
type SummaryMailer interface {
	SendSummary(ctx context.Context, to, subject string, s *Summary) error
}

// CheckInEventPublisher records committed batches (Redis stream)
type CheckInEventPublisher interface {
	PublishCheckIn(ctx context.Context, ev CheckInEvent) error
}

// SummaryPublisher pushes the refreshed summary to desk displays (MQTT)
type SummaryPublisher interface {
	PublishSummary(ctx context.Context, s *Summary) error
}

// Committed what the coordinator hands to the notifier after a successful commit
type Committed struct {
	BatchID   string
	Actor     string
	EventID   string
	OrgID     string
	Request   checkin.Request
	Processed []string
	Outcomes  []checkin.Outcome
	Attempts  int
}

// Notifier best-effort post-commit side effects. Every step is optional (nil disables it)
// and failures are only logged.
type Notifier struct {
	reader     repository.CheckInReader
	webhook    WebhookSender
	mailer     SummaryMailer
	events     CheckInEventPublisher
	displays   SummaryPublisher
	cache      store.KV
	summaryTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NotifierOptions optional collaborators of the notifier
type NotifierOptions struct {
	Webhook    WebhookSender
	Mailer     SummaryMailer
	Events     CheckInEventPublisher
	Displays   SummaryPublisher
	Cache      store.KV
	SummaryTTL time.Duration
}

func NewNotifier(reader repository.CheckInReader, opts NotifierOptions, logger *zap.Logger) *Notifier {
	return &Notifier{
		reader:     reader,
		webhook:    opts.Webhook,
		mailer:     opts.Mailer,
		events:     opts.Events,
		displays:   opts.Displays,
		cache:      opts.Cache,
		summaryTTL: opts.SummaryTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// Notify runs every configured step for a committed batch
func (n *Notifier) Notify(ctx context.Context, c Committed) {
	log := n.logger.With(
		zap.String("batch_id", c.BatchID),
		zap.String("event_id", c.EventID),
		zap.String("org_id", c.OrgID),
	)

	if n.events != nil {
		err := n.events.PublishCheckIn(ctx, CheckInEvent{
			BatchID:   c.BatchID,
			Actor:     c.Actor,
			EventID:   c.EventID,
			OrgID:     c.OrgID,
			Request:   c.Request,
			Processed: c.Processed,
			Outcomes:  c.Outcomes,
			Attempts:  c.Attempts,
			At:        n.now().UTC(),
		})
		if err != nil {
			log.Warn("failed to publish check-in event", zap.Error(err))
		}
	}

	ev, err := n.reader.LoadEvent(ctx, c.EventID)
	if err != nil {
		log.Error("post-commit: failed to load event", zap.Error(err))
		return
	}
	org, err := n.reader.LoadOrganization(ctx, c.EventID, c.OrgID)
	if err != nil {
		log.Error("post-commit: failed to load organization", zap.Error(err))
		return
	}
	docs, err := n.reader.ListTeams(ctx, c.EventID, c.OrgID, nil)
	if err != nil {
		log.Error("post-commit: failed to list teams", zap.Error(err))
		return
	}
	summary := BuildSummary(ev, org, docs, n.now())

	if n.cache != nil {
		n.refreshCache(ctx, summary, log)
	}

	if n.webhook != nil && ev.WebhookURL.Valid && ev.WebhookURL.String != "" {
		err := n.webhook.Send(ctx, ev.WebhookURL.String, WebhookPayload{
			Actor:        c.Actor,
			EventID:      ev.EventID,
			EventName:    ev.EventName,
			Organization: org.OrgName,
			BatchID:      c.BatchID,
			TeamNumbers:  summary.CheckedInNumbers,
			SentAt:       n.now().UTC(),
		})
		if err != nil {
			log.Warn("webhook failed", zap.Error(err))
		}
	}

	if n.mailer != nil && org.ContactEmail.Valid && org.ContactEmail.String != "" {
		subject := fmt.Sprintf("Check-in summary: %s (%s)", org.OrgName, ev.EventName)
		if ev.EmailSubject.Valid && ev.EmailSubject.String != "" {
			subject = ev.EmailSubject.String
		}
		if err := n.mailer.SendSummary(ctx, org.ContactEmail.String, subject, summary); err != nil {
			log.Warn("summary email failed", zap.Error(err))
		}
	}

	if n.displays != nil {
		if err := n.displays.PublishSummary(ctx, summary); err != nil {
			log.Warn("desk display publish failed", zap.Error(err))
		}
	}
}

func (n *Notifier) refreshCache(ctx context.Context, summary *Summary, log *zap.Logger) {
	b, err := json.Marshal(summary)
	if err != nil {
		log.Warn("failed to encode summary", zap.Error(err))
		return
	}
	if err := n.cache.Set(ctx, store.SummaryKey(summary.EventID, summary.OrgID), string(b), n.summaryTTL); err != nil {
		log.Warn("failed to cache summary", zap.Error(err))
	}
}
