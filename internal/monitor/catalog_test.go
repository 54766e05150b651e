package monitor

import (
	"hos-dispatch-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog(DefaultTriggerSettings())
	require.NoError(t, err)
	require.Equal(t, 14, c.Len())

	d, ok := c.Get(DriverNotMoving)
	require.True(t, ok)
	require.Equal(t, domain.CategoryDriver, d.Category)
	require.Equal(t, domain.SeverityMedium, d.Severity)
	require.False(t, d.RequiresReplan)
	require.Equal(t, []domain.TelemetryFeed{domain.FeedGPS}, d.Feeds)

	descs := c.Descriptors()
	require.Equal(t, HOSDriveLimitApproaching, descs[0].Type)
	require.Equal(t, SevereWeather, descs[len(descs)-1].Type)
}

func TestDefaultCatalogDisabled(t *testing.T) {
	s := DefaultTriggerSettings()
	s.Disabled = []string{TrafficDelay, DriverSpeeding}

	c, err := DefaultCatalog(s)
	require.NoError(t, err)
	require.Equal(t, 12, c.Len())
	_, ok := c.Get(TrafficDelay)
	require.False(t, ok)
}

func TestCatalogRegisterValidates(t *testing.T) {
	quiet := func(TriggerInput) Evaluation { return Quiet() }
	valid := TriggerDescriptor{
		Type:      "CUSTOM",
		Category:  domain.CategoryRoute,
		Severity:  domain.SeverityLow,
		Feeds:     []domain.TelemetryFeed{domain.FeedGPS},
		Predicate: quiet,
	}

	tests := []struct {
		name   string
		mutate func(*TriggerDescriptor)
	}{
		{"empty type", func(d *TriggerDescriptor) { d.Type = " " }},
		{"bad category", func(d *TriggerDescriptor) { d.Category = "cargo" }},
		{"bad severity", func(d *TriggerDescriptor) { d.Severity = "urgent" }},
		{"bad escalation", func(d *TriggerDescriptor) { d.Escalation = "urgent" }},
		{"nil predicate", func(d *TriggerDescriptor) { d.Predicate = nil }},
		{"negative cooldown", func(d *TriggerDescriptor) { d.Cooldown = -1 }},
		{"unknown feed", func(d *TriggerDescriptor) { d.Feeds = []domain.TelemetryFeed{"radar"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			require.Error(t, NewCatalog().Register(d))
		})
	}

	c := NewCatalog()
	require.NoError(t, c.Register(valid))
	require.Error(t, c.Register(valid), "duplicate type")
}
