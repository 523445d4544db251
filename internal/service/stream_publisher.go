package service

import (
	"context"
	"time"

	commonredis "checkin-desk/common/redis"
	"checkin-desk/internal/checkin"
)

// CheckInEvent record appended to the check-in stream after each committed batch
type CheckInEvent struct {
	BatchID   string            `json:"batch_id"`
	Actor     string            `json:"actor"`
	EventID   string            `json:"event_id"`
	OrgID     string            `json:"org_id"`
	Request   checkin.Request   `json:"request"`
	Processed []string          `json:"processed"`
	Outcomes  []checkin.Outcome `json:"outcomes"`
	Attempts  int               `json:"attempts"`
	At        time.Time         `json:"at"`
}

// StreamPublisher appends check-in events to a Redis stream
type StreamPublisher struct {
	client *commonredis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *commonredis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) PublishCheckIn(ctx context.Context, ev CheckInEvent) error {
	_, err := commonredis.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, ev)
	return err
}
