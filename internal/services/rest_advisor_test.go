package services

import (
	"hos-dispatch-service/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdvisor() *RestAdvisor {
	return NewRestAdvisor(DefaultThresholds(), DefaultHOSRules(), 55, 30)
}

func TestRecommendFullRestNearDriveLimit(t *testing.T) {
	rec, err := newTestAdvisor().Recommend(
		domain.DriverHOSState{HoursDriven: 10.5, OnDutyTime: 11, HoursSinceBreak: 2, HoursSinceQualifyingRest: 11},
		domain.RestOpportunity{RemainingDistanceMiles: 50},
		domain.RestPolicy{AllowDockRest: true},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.RestFull, rec.Recommendation)
	assert.Equal(t, 10.0, rec.RecommendedDurationHours)
	assert.True(t, rec.IsCompliant)
	assert.False(t, rec.DriverCanDecline)
	assert.True(t, rec.Feasibility.RestRequired)
	assert.Equal(t, 300.0, rec.Cost.FullRestCost)
	assert.NotEmpty(t, rec.Reasoning)
}

func TestRecommendPartialRestAtDock(t *testing.T) {
	rec, err := newTestAdvisor().Recommend(
		domain.DriverHOSState{HoursDriven: 10, OnDutyTime: 12, HoursSinceBreak: 1, HoursSinceQualifyingRest: 12},
		domain.RestOpportunity{DockDurationHours: 8, RemainingDistanceMiles: 200},
		domain.RestPolicy{AllowDockRest: true},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.RestPartial, rec.Recommendation)
	assert.InDelta(t, 2, rec.RecommendedDurationHours, 1e-9)
	assert.Greater(t, rec.Opportunity.HoursGainable, 0.0)
	assert.InDelta(t, 2, rec.Opportunity.PartialDeficitHours, 1e-9)
	assert.Equal(t, 60.0, rec.Cost.PartialRestCost)
	assert.InDelta(t, 8, rec.Cost.TimeSavedHours, 1e-9)
	assert.True(t, rec.DriverCanDecline)
}

func TestRecommendHonoursPolicy(t *testing.T) {
	state := domain.DriverHOSState{HoursDriven: 10, OnDutyTime: 12, HoursSinceBreak: 1, HoursSinceQualifyingRest: 12}
	opp := domain.RestOpportunity{DockDurationHours: 8, RemainingDistanceMiles: 200}

	policies := map[string]domain.RestPolicy{
		"prefer full":       {AllowDockRest: true, PreferFullRest: true},
		"dock rest off":     {AllowDockRest: false},
		"savings too small": {AllowDockRest: true, MinPartialSavingsHours: 9},
	}
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			rec, err := newTestAdvisor().Recommend(state, opp, policy)
			require.NoError(t, err)
			assert.Equal(t, domain.RestFull, rec.Recommendation)
			assert.Equal(t, 10.0, rec.RecommendedDurationHours)
		})
	}
}

func TestRecommendBreak(t *testing.T) {
	rec, err := newTestAdvisor().Recommend(
		domain.DriverHOSState{HoursDriven: 8.2, OnDutyTime: 9, HoursSinceBreak: 8.2, HoursSinceQualifyingRest: 9},
		domain.RestOpportunity{RemainingDistanceMiles: 60},
		domain.RestPolicy{},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.RestBreak, rec.Recommendation)
	assert.Equal(t, 0.5, rec.RecommendedDurationHours)
	assert.False(t, rec.DriverCanDecline)
}

func TestRecommendNoRest(t *testing.T) {
	rec, err := newTestAdvisor().Recommend(
		domain.DriverHOSState{HoursDriven: 2, OnDutyTime: 3, HoursSinceBreak: 2, HoursSinceQualifyingRest: 3},
		domain.RestOpportunity{RemainingDistanceMiles: 110},
		domain.RestPolicy{AllowDockRest: true},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.RestNone, rec.Recommendation)
	assert.Zero(t, rec.RecommendedDurationHours)
	assert.True(t, rec.DriverCanDecline)
	assert.InDelta(t, 7, rec.HoursAfterRestDrive, 1e-9)
	assert.Equal(t, 1.0, rec.Confidence)
	assert.True(t, rec.Cost.NoRestAllowed)
}

func TestRecommendInfeasibleAppointment(t *testing.T) {
	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	rec, err := newTestAdvisor().Recommend(
		domain.DriverHOSState{HoursDriven: 2, OnDutyTime: 2, HoursSinceQualifyingRest: 2},
		domain.RestOpportunity{
			CurrentTime:            now,
			RemainingDistanceMiles: 825,
			AppointmentTime:        now.Add(16 * time.Hour),
		},
		domain.RestPolicy{},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.RestFull, rec.Recommendation)
	assert.False(t, rec.Feasibility.Feasible)
	assert.Equal(t, domain.LimitDriveMargin, rec.Feasibility.LimitingFactor)
	assert.InDelta(t, 6, rec.Feasibility.ShortfallHours, 1e-6)
	require.NotNil(t, rec.Feasibility.HoursUntilAppointment)
	assert.Equal(t, 16.0, *rec.Feasibility.HoursUntilAppointment)
}

// More accumulated hours never turn a required rest into no rest.
func TestRecommendMonotoneInHours(t *testing.T) {
	adv := newTestAdvisor()
	opp := domain.RestOpportunity{RemainingDistanceMiles: 165}

	required := false
	for h := 0.0; h <= 11; h += 0.25 {
		rec, err := adv.Recommend(
			domain.DriverHOSState{HoursDriven: h, OnDutyTime: h + 1, HoursSinceQualifyingRest: h + 1},
			opp, domain.RestPolicy{},
		)
		require.NoError(t, err)
		if required {
			assert.NotEqual(t, domain.RestNone, rec.Recommendation, "hours driven %.2f", h)
		}
		if rec.Recommendation != domain.RestNone {
			required = true
		}
	}
	assert.True(t, required)
}

// A longer dock dwell never turns a partial or skipped rest back into a full one.
func TestRecommendMonotoneInDockDuration(t *testing.T) {
	adv := newTestAdvisor()
	state := domain.DriverHOSState{HoursDriven: 10, OnDutyTime: 12, HoursSinceBreak: 1, HoursSinceQualifyingRest: 12}

	for _, policy := range []domain.RestPolicy{
		{AllowDockRest: true},
		{AllowDockRest: true, MinPartialSavingsHours: 1},
	} {
		relieved := false
		for dock := 0.0; dock <= 12; dock += 0.25 {
			rec, err := adv.Recommend(state,
				domain.RestOpportunity{DockDurationHours: dock, RemainingDistanceMiles: 200}, policy)
			require.NoError(t, err)
			if relieved {
				assert.NotEqual(t, domain.RestFull, rec.Recommendation, "dock %.2fh, policy %+v", dock, policy)
			}
			if rec.Recommendation == domain.RestPartial || rec.Recommendation == domain.RestNone {
				relieved = true
			}
		}
		assert.True(t, relieved, "policy %+v", policy)
	}
}

func TestRecommendRejectsInvalidInput(t *testing.T) {
	adv := newTestAdvisor()
	_, err := adv.Recommend(domain.DriverHOSState{HoursDriven: -1}, domain.RestOpportunity{}, domain.RestPolicy{})
	require.Error(t, err)

	_, err = adv.Recommend(domain.DriverHOSState{}, domain.RestOpportunity{RemainingDistanceMiles: -5}, domain.RestPolicy{})
	require.Error(t, err)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}
