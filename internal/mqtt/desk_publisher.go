package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkin-desk/internal/service"

	"go.uber.org/zap"
)

// Publisher the part of common/mqtt.Client the desk publisher needs
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// DeskMessage what a desk display renders for one organization
type DeskMessage struct {
	EventID          string    `json:"event_id"`
	EventName        string    `json:"event_name"`
	OrgID            string    `json:"org_id"`
	OrgName          string    `json:"org_name"`
	Teams            int       `json:"teams"`
	CheckedIn        int       `json:"checked_in"`
	CheckedInNumbers []string  `json:"checked_in_numbers"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// DeskPublisher pushes retained summary messages to {prefix}/{event}/{org}
type DeskPublisher struct {
	client Publisher
	prefix string
	logger *zap.Logger
}

// NewDeskPublisher 创建签到台大屏推送
func NewDeskPublisher(client Publisher, prefix string, logger *zap.Logger) *DeskPublisher {
	if prefix == "" {
		prefix = "checkin"
	}
	return &DeskPublisher{client: client, prefix: prefix, logger: logger}
}

// Topic topic for one organization
func (p *DeskPublisher) Topic(eventID, orgID string) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, eventID, orgID)
}

// PublishSummary implements service.SummaryPublisher
func (p *DeskPublisher) PublishSummary(ctx context.Context, s *service.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := DeskMessage{
		EventID:          s.EventID,
		EventName:        s.EventName,
		OrgID:            s.OrgID,
		OrgName:          s.OrgName,
		Teams:            len(s.Teams),
		CheckedIn:        s.CheckedInCount(),
		CheckedInNumbers: s.CheckedInNumbers,
		GeneratedAt:      s.GeneratedAt,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal desk message: %w", err)
	}

	topic := p.Topic(s.EventID, s.OrgID)
	if err := p.client.Publish(topic, true, payload); err != nil {
		return err
	}
	p.logger.Debug("desk summary published",
		zap.String("topic", topic),
		zap.Int("checked_in", msg.CheckedIn),
	)
	return nil
}
