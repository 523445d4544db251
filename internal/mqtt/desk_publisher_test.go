package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"checkin-desk/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, retained bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{topic, retained, payload})
	return nil
}

func TestDeskPublisher_PublishSummary(t *testing.T) {
	fake := &fakePublisher{}
	p := NewDeskPublisher(fake, "", zap.NewNop())

	s := &service.Summary{
		EventID: "ev-1", OrgID: "org-1", OrgName: "North",
		Teams: []service.TeamSummary{
			{TeamID: "t1", Number: "001", CheckedIn: true},
			{TeamID: "t2"},
		},
		CheckedInNumbers: []string{"001"},
		GeneratedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishSummary(context.Background(), s))

	require.Len(t, fake.msgs, 1)
	assert.Equal(t, "checkin/ev-1/org-1", fake.msgs[0].topic)
	assert.True(t, fake.msgs[0].retained)

	var msg DeskMessage
	require.NoError(t, json.Unmarshal(fake.msgs[0].payload, &msg))
	assert.Equal(t, 2, msg.Teams)
	assert.Equal(t, 1, msg.CheckedIn)
	assert.Equal(t, []string{"001"}, msg.CheckedInNumbers)
}

func TestDeskPublisher_Errors(t *testing.T) {
	fake := &fakePublisher{err: errors.New("broker down")}
	p := NewDeskPublisher(fake, "desk", zap.NewNop())
	assert.Equal(t, "desk/e/o", p.Topic("e", "o"))

	err := p.PublishSummary(context.Background(), &service.Summary{EventID: "e", OrgID: "o"})
	assert.EqualError(t, err, "broker down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.PublishSummary(ctx, &service.Summary{}), context.Canceled)
}
