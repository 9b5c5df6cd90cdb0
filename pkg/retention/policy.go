package retention

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is the time unit of an age or inactivity window.
type Unit string

const (
	UnitDays   Unit = "days"
	UnitWeeks  Unit = "weeks"
	UnitMonths Unit = "months"
)

// ParseUnit parses a unit name. Singular spellings and case are accepted.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "days":
		return UnitDays, nil
	case "week", "weeks":
		return UnitWeeks, nil
	case "month", "months":
		return UnitMonths, nil
	}
	return "", fmt.Errorf("unknown time unit %q (expected days, weeks or months)", s)
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == UnitDays || u == UnitWeeks || u == UnitMonths
}

// Days returns the length of the unit in days. A month is 30 days; an
// unknown unit counts as a day.
func (u Unit) Days() int {
	switch u {
	case UnitWeeks:
		return 7
	case UnitMonths:
		return 30
	default:
		return 1
	}
}

// Field names of the time criteria of a policy. They double as the keys of
// the global ceilings.
const (
	FieldMinimumRevisionsToKeep = "minimum_revisions_to_keep"
	FieldMinimumAgeToDelete     = "minimum_age_to_delete"
	FieldWhenToDelete           = "when_to_delete"
)

// ValidTimeField reports whether field names a time criterion.
func ValidTimeField(field string) bool {
	return field == FieldMinimumAgeToDelete || field == FieldWhenToDelete
}

// Age is an amount of time units. An amount of 0 disables the criterion.
type Age struct {
	Amount int  `yaml:"amount" json:"amount"`
	Unit   Unit `yaml:"unit" json:"unit"`
}

// Enabled reports whether the criterion applies.
func (a Age) Enabled() bool {
	return a.Amount > 0
}

// Cutoff returns now minus the age, using calendar arithmetic.
func (a Age) Cutoff(now time.Time) time.Time {
	switch a.Unit {
	case UnitWeeks:
		return now.AddDate(0, 0, -7*a.Amount)
	case UnitMonths:
		return now.AddDate(0, -a.Amount, 0)
	default:
		return now.AddDate(0, 0, -a.Amount)
	}
}

// Days returns the age in days, using the month length of Unit.Days.
func (a Age) Days() int {
	return a.Amount * a.Unit.Days()
}

// String renders the age as "N unit(s)", or "disabled".
func (a Age) String() string {
	if !a.Enabled() {
		return "disabled"
	}
	return fmt.Sprintf("%d %s", a.Amount, UnitString(a.Amount, a.Unit))
}

// ParseAge parses "N unit" ("3 months", "1 week", "10days"). A bare number
// leaves the unit empty; "", "0", "off" and "disabled" yield the disabled
// age.
func ParseAge(s string) (Age, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "0", "off", "disabled":
		return Age{}, nil
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Age{}, fmt.Errorf("invalid age %q (expected a number followed by days, weeks or months)", s)
	}
	amount, err := strconv.Atoi(s[:i])
	if err != nil {
		return Age{}, fmt.Errorf("invalid age %q: %w", s, err)
	}

	rest := strings.TrimSpace(s[i:])
	if rest == "" {
		return Age{Amount: amount}, nil
	}
	unit, err := ParseUnit(rest)
	if err != nil {
		return Age{}, err
	}
	return Age{Amount: amount, Unit: unit}, nil
}

// Policy is the retention policy of one content type.
type Policy struct {
	ContentType            string `yaml:"content_type" json:"content_type"`
	MinimumRevisionsToKeep int    `yaml:"minimum_revisions_to_keep" json:"minimum_revisions_to_keep"`
	MinimumAgeToDelete     Age    `yaml:"minimum_age_to_delete" json:"minimum_age_to_delete"` // against revision timestamp
	WhenToDelete           Age    `yaml:"when_to_delete" json:"when_to_delete"`               // against record inactivity
}

// Validate checks the policy invariants.
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.ContentType) == "" {
		return NewPolicyError(p.ContentType, "content_type", "content type is required")
	}
	if p.MinimumRevisionsToKeep < 0 {
		return NewPolicyError(p.ContentType, FieldMinimumRevisionsToKeep,
			fmt.Sprintf("must be >= 0, got %d", p.MinimumRevisionsToKeep))
	}
	if err := validateAge(p.ContentType, FieldMinimumAgeToDelete, p.MinimumAgeToDelete); err != nil {
		return err
	}
	return validateAge(p.ContentType, FieldWhenToDelete, p.WhenToDelete)
}

func validateAge(contentType, field string, a Age) error {
	if a.Amount < 0 {
		return NewPolicyError(contentType, field, fmt.Sprintf("amount must be >= 0, got %d", a.Amount))
	}
	if a.Amount > 0 && !a.Unit.Valid() {
		return NewPolicyError(contentType, field, fmt.Sprintf("unknown unit %q", a.Unit))
	}
	return nil
}

// TimeCriterion returns the age stored under a time field.
func (p *Policy) TimeCriterion(field string) (Age, bool) {
	switch field {
	case FieldMinimumAgeToDelete:
		return p.MinimumAgeToDelete, true
	case FieldWhenToDelete:
		return p.WhenToDelete, true
	}
	return Age{}, false
}

// SetTimeCriterion replaces the age stored under a time field.
func (p *Policy) SetTimeCriterion(field string, a Age) bool {
	switch field {
	case FieldMinimumAgeToDelete:
		p.MinimumAgeToDelete = a
	case FieldWhenToDelete:
		p.WhenToDelete = a
	default:
		return false
	}
	return true
}

// Ceiling is the global maximum for a time criterion. Policies keep their
// own unit; both sides are compared in days.
type Ceiling struct {
	MaxNumber int  `yaml:"max_number" json:"max_number"`
	Unit      Unit `yaml:"unit" json:"unit"`
}

// Validate checks the ceiling values.
func (c Ceiling) Validate() error {
	if c.MaxNumber < 1 {
		return fmt.Errorf("max_number must be >= 1, got %d", c.MaxNumber)
	}
	if !c.Unit.Valid() {
		return fmt.Errorf("unknown unit %q", c.Unit)
	}
	return nil
}

// String renders the ceiling as "N unit(s)".
func (c Ceiling) String() string {
	return fmt.Sprintf("%d %s", c.MaxNumber, UnitString(c.MaxNumber, c.Unit))
}

// Days returns the ceiling in days.
func (c Ceiling) Days() int {
	return c.MaxNumber * c.Unit.Days()
}

// Allows reports whether a fits under the ceiling.
func (c Ceiling) Allows(a Age) bool {
	return a.Days() <= c.Days()
}

// Clamp returns a unchanged when it fits under the ceiling. Otherwise it
// returns the ceiling expressed in the unit of a, or the ceiling itself when
// that unit cannot express it exactly.
func (c Ceiling) Clamp(a Age) Age {
	if c.Allows(a) {
		return a
	}
	per := a.Unit.Days()
	if c.Days()%per == 0 {
		return Age{Amount: c.Days() / per, Unit: a.Unit}
	}
	return Age{Amount: c.MaxNumber, Unit: c.Unit}
}
