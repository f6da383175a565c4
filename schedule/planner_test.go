// ABOUTME: Tests for the session planner and study preferences
// ABOUTME: Verifies window placement, weekday skipping, buffers, and YAML parsing
package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-02 is a Monday.
func day(d, hour, minute int) time.Time {
	return time.Date(2026, 3, d, hour, minute, 0, 0, time.UTC)
}

func TestPlanSessionsAvoidsBusyAndKeepsOrder(t *testing.T) {
	prefs := DefaultPreferences()
	busy := []Interval{{Start: day(2, 12, 0), End: day(2, 13, 0)}}
	items := []PlanItem{
		{ID: "a", Title: "Research", Phase: "Research", Minutes: 90},
		{ID: "b", Title: "Draft", Phase: "Drafting", Minutes: 120},
	}

	plan := PlanSessions(items, busy, prefs, "History", day(2, 8, 0), day(13, 23, 59))

	require.Len(t, plan.Sessions, 2)
	assert.Empty(t, plan.Unplaced)
	assert.Equal(t, day(2, 13, 0), plan.Sessions[0].Start)
	assert.Equal(t, day(2, 14, 30), plan.Sessions[0].End)
	assert.Equal(t, day(2, 14, 30), plan.Sessions[1].Start)
	assert.Equal(t, day(2, 16, 30), plan.Sessions[1].End)
	assert.Equal(t, "b", plan.Sessions[1].Item.ID)

	// the input busy slice is untouched
	assert.Len(t, busy, 1)
}

func TestPlanSessionsSpillsToNextStudyDay(t *testing.T) {
	prefs := DefaultPreferences()
	// Friday afternoon is full, weekend is not a study day
	busy := []Interval{{Start: day(6, 12, 0), End: day(6, 17, 0)}}
	items := []PlanItem{{ID: "a", Title: "Review", Minutes: 60}}

	plan := PlanSessions(items, busy, prefs, "", day(6, 8, 0), day(20, 12, 0))

	require.Len(t, plan.Sessions, 1)
	assert.Equal(t, day(9, 12, 0), plan.Sessions[0].Start)
	assert.Equal(t, time.Monday, plan.Sessions[0].Start.Weekday())
}

func TestPlanSessionsWeakSubjectGetsMoreTime(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.SubjectsNeedingMoreTime = []string{"chemistry"}
	items := []PlanItem{{ID: "a", Title: "Problem set", Minutes: 60}}

	plan := PlanSessions(items, nil, prefs, "Chemistry", day(2, 8, 0), day(13, 0, 0))

	require.Len(t, plan.Sessions, 1)
	assert.Equal(t, 75, plan.Sessions[0].Minutes)
	assert.Equal(t, 75*time.Minute, plan.Sessions[0].End.Sub(plan.Sessions[0].Start))
}

func TestPlanSessionsDefaultMinutes(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.DefaultWorkMinutes = 40
	items := []PlanItem{{ID: "a", Title: "Read"}}

	plan := PlanSessions(items, nil, prefs, "", day(2, 8, 0), day(13, 0, 0))

	require.Len(t, plan.Sessions, 1)
	assert.Equal(t, 40, plan.Sessions[0].Minutes)
}

func TestPlanSessionsUnplacedWhenNoRoom(t *testing.T) {
	prefs := DefaultPreferences()
	items := []PlanItem{
		{ID: "a", Title: "Quick review", Minutes: 30},
		{ID: "b", Title: "Marathon", Minutes: 600},
	}

	// due tomorrow: the buffer would land before from, so due is the target
	plan := PlanSessions(items, nil, prefs, "", day(2, 8, 0), day(3, 18, 0))

	assert.Equal(t, day(3, 18, 0), plan.Target)
	require.Len(t, plan.Sessions, 1)
	require.Len(t, plan.Unplaced, 1)
	assert.Equal(t, "b", plan.Unplaced[0].ID)
}

func TestPlanSessionsPreferredWindows(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.PreferredStudyTimes = []TimeWindow{{Start: "19:00", End: "21:00"}}
	items := []PlanItem{{ID: "a", Title: "Essay", Minutes: 60}}

	plan := PlanSessions(items, nil, prefs, "", day(2, 8, 0), day(13, 0, 0))

	require.Len(t, plan.Sessions, 1)
	assert.Equal(t, day(2, 19, 0), plan.Sessions[0].Start)
}

func TestPlanSessionsRespectsTimezone(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.Timezone = "America/New_York"
	items := []PlanItem{{ID: "a", Title: "Essay", Minutes: 60}}

	plan := PlanSessions(items, nil, prefs, "", day(2, 8, 0), day(13, 0, 0))

	require.Len(t, plan.Sessions, 1)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 12, plan.Sessions[0].Start.In(ny).Hour())
}

func TestTargetCompletion(t *testing.T) {
	prefs := DefaultPreferences()
	assert.Equal(t, day(11, 9, 0), TargetCompletion(prefs, day(2, 9, 0), day(13, 9, 0)))

	zero := 0
	prefs.DeadlineBufferDays = &zero
	assert.Equal(t, day(13, 9, 0), TargetCompletion(prefs, day(2, 9, 0), day(13, 9, 0)))
}

func TestParsePreferences(t *testing.T) {
	data := []byte(`
days_available: [0, 6]
productivity_pattern: evening
deadline_buffer_days: 1
default_work_minutes: 45
subjects_needing_more_time: [Physics]
`)

	prefs, err := ParsePreferences(data)
	require.NoError(t, err)

	assert.True(t, prefs.DayAvailable(time.Sunday))
	assert.True(t, prefs.DayAvailable(time.Saturday))
	assert.False(t, prefs.DayAvailable(time.Monday))
	assert.Equal(t, []TimeWindow{{Start: "17:00", End: "21:00"}}, prefs.Windows())
	assert.Equal(t, 1, prefs.BufferDays())
	assert.Equal(t, 45, prefs.WorkMinutes())
	assert.True(t, prefs.NeedsMoreTime("physics"))
}

func TestParsePreferencesEmptyUsesDefaults(t *testing.T) {
	prefs, err := ParsePreferences(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferences(), prefs)
	assert.Equal(t, 2, prefs.BufferDays())
}

func TestParsePreferencesRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad day":      "days_available: [7]",
		"bad pattern":  "productivity_pattern: night",
		"bad window":   "preferred_study_times: [{start: '18:00', end: '17:00'}]",
		"bad clock":    "preferred_study_times: [{start: 'noon', end: '17:00'}]",
		"bad timezone": "timezone: Mars/Olympus",
		"bad yaml":     "days_available: [",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePreferences([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.PreferredStudyTimes = []TimeWindow{{Start: "09:00", End: "11:00"}}

	data, err := prefs.Marshal()
	require.NoError(t, err)

	decoded, err := ParsePreferences(data)
	require.NoError(t, err)
	assert.Equal(t, prefs.Windows(), decoded.Windows())
}
