// ABOUTME: Study preferences that drive session placement
// ABOUTME: Parses YAML preferences, time windows, and productivity patterns
package schedule

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Productivity patterns map to a default daily study window.
const (
	PatternMorning = "morning"
	PatternMidday  = "midday"
	PatternEvening = "evening"
)

const (
	defaultDeadlineBufferDays = 2
	defaultWorkMinutes        = 50
	weakSubjectMultiplier     = 1.25
)

var patternWindows = map[string]TimeWindow{
	PatternMorning: {Start: "08:00", End: "12:00"},
	PatternMidday:  {Start: "12:00", End: "17:00"},
	PatternEvening: {Start: "17:00", End: "21:00"},
}

// TimeWindow is a daily window in 24-hour HH:MM form.
type TimeWindow struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// Preferences describe when a student is willing to study.
type Preferences struct {
	// DaysAvailable uses 0=Sunday through 6=Saturday.
	DaysAvailable           []int        `yaml:"days_available" json:"days_available"`
	PreferredStudyTimes     []TimeWindow `yaml:"preferred_study_times,omitempty" json:"preferred_study_times,omitempty"`
	ProductivityPattern     string       `yaml:"productivity_pattern,omitempty" json:"productivity_pattern,omitempty"`
	DeadlineBufferDays      *int         `yaml:"deadline_buffer_days,omitempty" json:"deadline_buffer_days,omitempty"`
	DefaultWorkMinutes      int          `yaml:"default_work_minutes,omitempty" json:"default_work_minutes,omitempty"`
	SubjectsNeedingMoreTime []string     `yaml:"subjects_needing_more_time,omitempty" json:"subjects_needing_more_time,omitempty"`
	Timezone                string       `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// DefaultPreferences returns weekday, midday study preferences.
func DefaultPreferences() Preferences {
	return Preferences{
		DaysAvailable:       []int{1, 2, 3, 4, 5},
		ProductivityPattern: PatternMidday,
		DefaultWorkMinutes:  defaultWorkMinutes,
	}
}

// ParsePreferences decodes YAML preferences. Empty input yields the defaults.
func ParsePreferences(data []byte) (Preferences, error) {
	prefs := DefaultPreferences()
	if len(strings.TrimSpace(string(data))) == 0 {
		return prefs, nil
	}

	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if err := prefs.Validate(); err != nil {
		return Preferences{}, err
	}

	return prefs, nil
}

// Marshal encodes preferences as YAML.
func (p Preferences) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return data, nil
}

// Validate checks days, windows, and timezone.
func (p Preferences) Validate() error {
	for _, d := range p.DaysAvailable {
		if d < 0 || d > 6 {
			return fmt.Errorf("invalid day %d (use 0=Sunday through 6=Saturday)", d)
		}
	}

	if p.ProductivityPattern != "" {
		if _, ok := patternWindows[p.ProductivityPattern]; !ok {
			return fmt.Errorf("invalid productivity pattern: %s (valid: morning, midday, evening)", p.ProductivityPattern)
		}
	}

	for _, w := range p.PreferredStudyTimes {
		start, err := parseClock(w.Start)
		if err != nil {
			return err
		}
		end, err := parseClock(w.End)
		if err != nil {
			return err
		}
		if end <= start {
			return fmt.Errorf("invalid study window %s-%s: end must be after start", w.Start, w.End)
		}
	}

	if p.DeadlineBufferDays != nil && *p.DeadlineBufferDays < 0 {
		return fmt.Errorf("deadline buffer cannot be negative")
	}

	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", p.Timezone, err)
		}
	}

	return nil
}

// Windows returns the preferred windows, falling back to the productivity pattern.
func (p Preferences) Windows() []TimeWindow {
	if len(p.PreferredStudyTimes) > 0 {
		return p.PreferredStudyTimes
	}
	if w, ok := patternWindows[p.ProductivityPattern]; ok {
		return []TimeWindow{w}
	}
	return []TimeWindow{patternWindows[PatternMidday]}
}

// DayAvailable reports whether the weekday is a study day.
func (p Preferences) DayAvailable(day time.Weekday) bool {
	for _, d := range p.DaysAvailable {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// BufferDays returns the deadline buffer, defaulting to two days.
func (p Preferences) BufferDays() int {
	if p.DeadlineBufferDays == nil {
		return defaultDeadlineBufferDays
	}
	return *p.DeadlineBufferDays
}

// WorkMinutes returns the default session length.
func (p Preferences) WorkMinutes() int {
	if p.DefaultWorkMinutes <= 0 {
		return defaultWorkMinutes
	}
	return p.DefaultWorkMinutes
}

// NeedsMoreTime reports whether the subject is marked as needing extra time.
func (p Preferences) NeedsMoreTime(subject string) bool {
	for _, s := range p.SubjectsNeedingMoreTime {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(subject)) {
			return true
		}
	}
	return false
}

// Location returns the configured timezone or fallback.
func (p Preferences) Location(fallback *time.Location) *time.Location {
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// parseClock returns minutes since midnight for an HH:MM string.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (use HH:MM): %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// on places the window on the given day in loc.
func (w TimeWindow) on(day time.Time, loc *time.Location) (Interval, bool) {
	start, err := parseClock(w.Start)
	if err != nil {
		return Interval{}, false
	}
	end, err := parseClock(w.End)
	if err != nil || end <= start {
		return Interval{}, false
	}

	y, m, d := day.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Interval{
		Start: midnight.Add(time.Duration(start) * time.Minute),
		End:   midnight.Add(time.Duration(end) * time.Minute),
	}, true
}
