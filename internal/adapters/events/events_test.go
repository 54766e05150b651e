package events

import (
	"context"
	"errors"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ closed bool }

func (f *failingPublisher) Publish(context.Context, []domain.MonitoringTriggerEvent) error {
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error {
	f.closed = true
	return nil
}

func TestEventLogKeepsMostRecent(t *testing.T) {
	l := NewEventLog(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Publish(context.Background(), []domain.MonitoringTriggerEvent{
			{ID: fmt.Sprint(i), AssignmentID: "A-1"},
		}))
	}

	got := l.List("A-1")
	require.Len(t, got, 3)
	require.Equal(t, "2", got[0].ID)
	require.Equal(t, "4", got[2].ID)
	require.Empty(t, l.List("A-2"))
}

func TestMultiPublishesToAllSinks(t *testing.T) {
	l := NewEventLog(10)
	bad := &failingPublisher{}
	m := Multi{bad, l}

	err := m.Publish(context.Background(), []domain.MonitoringTriggerEvent{{ID: "e1", AssignmentID: "A-1"}})
	require.ErrorContains(t, err, "broker down")
	require.Len(t, l.List("A-1"), 1, "a failing sink does not block the others")

	require.NoError(t, m.Close())
	require.True(t, bad.closed)
}
