package retention

import (
	"fmt"
	"strings"
)

// UnitString returns the unit noun for an amount: singular for exactly one,
// plural otherwise.
func UnitString(amount int, unit Unit) string {
	if amount == 1 {
		return strings.TrimSuffix(string(unit), "s")
	}
	return string(unit)
}

// AgeString renders a time criterion the way operators read it.
//
//	minimum_age_to_delete  5 days
//	when_to_delete         After 5 days of inactivity
func AgeString(field string, a Age) string {
	noun := UnitString(a.Amount, a.Unit)
	if field == FieldWhenToDelete {
		return fmt.Sprintf("After %d %s of inactivity", a.Amount, noun)
	}
	return fmt.Sprintf("%d %s", a.Amount, noun)
}
