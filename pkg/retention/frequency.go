package retention

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Frequency keys accepted for scheduled runs.
const (
	FrequencyNever        = "never"
	FrequencyEveryTime    = "every_time"
	FrequencyEveryHour    = "every_hour"
	FrequencyEveryday     = "everyday"
	FrequencyEveryWeek    = "every_week"
	FrequencyEvery10Days  = "every_10_days"
	FrequencyEvery15Days  = "every_15_days"
	FrequencyEveryMonth   = "every_month"
	FrequencyEvery3Months = "every_3_months"
	FrequencyEvery6Months = "every_6_months"
	FrequencyEveryYear    = "every_year"
	FrequencyEvery2Years  = "every_2_years"
)

const (
	secondsPerDay   = 86400
	secondsPerWeek  = 7 * secondsPerDay
	secondsPerMonth = 30 * secondsPerDay
	secondsPerYear  = 365 * secondsPerDay
)

type frequencyDef struct {
	seconds int64 // -1 disables
	label   string
}

var frequencies = map[string]frequencyDef{
	FrequencyNever:        {-1, "Never"},
	FrequencyEveryTime:    {0, "Every time cron runs"},
	FrequencyEveryHour:    {3600, "Every hour"},
	FrequencyEveryday:     {secondsPerDay, "Everyday"},
	FrequencyEveryWeek:    {secondsPerWeek, "Every week"},
	FrequencyEvery10Days:  {10 * secondsPerDay, "Every 10 days"},
	FrequencyEvery15Days:  {15 * secondsPerDay, "Every 15 days"},
	FrequencyEveryMonth:   {secondsPerMonth, "Every month"},
	FrequencyEvery3Months: {3 * secondsPerMonth, "Every 3 months"},
	FrequencyEvery6Months: {6 * secondsPerMonth, "Every 6 months"},
	FrequencyEveryYear:    {secondsPerYear, "Every year"},
	FrequencyEvery2Years:  {2 * secondsPerYear, "Every 2 years"},
}

// FrequencyKeys lists the named keys from most to least frequent.
var FrequencyKeys = []string{
	FrequencyNever,
	FrequencyEveryTime,
	FrequencyEveryHour,
	FrequencyEveryday,
	FrequencyEveryWeek,
	FrequencyEvery10Days,
	FrequencyEvery15Days,
	FrequencyEveryMonth,
	FrequencyEvery3Months,
	FrequencyEvery6Months,
	FrequencyEveryYear,
	FrequencyEvery2Years,
}

var genericFrequency = regexp.MustCompile(`^every_([1-9][0-9]*)_(days|weeks|months)$`)

func lookupFrequency(key string) (frequencyDef, error) {
	if def, ok := frequencies[key]; ok {
		return def, nil
	}

	m := genericFrequency.FindStringSubmatch(key)
	if m == nil {
		return frequencyDef{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, key)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return frequencyDef{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, key)
	}

	unit := Unit(m[2])
	return frequencyDef{
		seconds: n * int64(unit.Days()) * secondsPerDay,
		label:   fmt.Sprintf("Every %d %s", n, UnitString(int(n), unit)),
	}, nil
}

// ValidateFrequency returns an error wrapping ErrUnknownFrequency when key is
// not a recognized frequency.
func ValidateFrequency(key string) error {
	_, err := lookupFrequency(key)
	return err
}

// FrequencyThreshold returns the minimum time between scheduled runs for key.
// The boolean is false when the key disables scheduled runs.
func FrequencyThreshold(key string) (time.Duration, bool, error) {
	def, err := lookupFrequency(key)
	if err != nil {
		return 0, false, err
	}
	if def.seconds < 0 {
		return 0, false, nil
	}
	return time.Duration(def.seconds) * time.Second, true, nil
}

// FrequencyLabel returns the human label of a frequency key.
func FrequencyLabel(key string) (string, error) {
	def, err := lookupFrequency(key)
	if err != nil {
		return "", err
	}
	return def.label, nil
}

// Eligible reports whether a scheduled run may start at now, given the
// completion time of the last run. A zero last means no run has completed.
func Eligible(key string, last, now time.Time) (bool, error) {
	threshold, enabled, err := FrequencyThreshold(key)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}
	if last.IsZero() {
		return true, nil
	}
	return now.Sub(last) >= threshold, nil
}
