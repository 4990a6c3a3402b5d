package declaration

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// =============================================================================
// COEFFICIENT TABLE - Pay multiplier per (activity type, hour kind)
// =============================================================================

type coefficientKey struct {
	Activity academic.ActivityType
	Kind     academic.HourKind
}

// Coefficients maps (activity type, hour kind) to a pay multiplier.
// Pairs without an entry use the table default. The zero value has no
// default and returns 1 for everything.
type Coefficients struct {
	def    decimal.Decimal
	hasDef bool
	values map[coefficientKey]decimal.Decimal
}

// NewCoefficients returns an empty table with the given default. A zero
// default is kept: unlisted pairs are then not paid.
func NewCoefficients(def decimal.Decimal) *Coefficients {
	return &Coefficients{def: def, hasDef: true, values: make(map[coefficientKey]decimal.Decimal)}
}

// Default returns the coefficient used for pairs without an entry.
func (c *Coefficients) Default() decimal.Decimal {
	if c == nil || !c.hasDef {
		return decimal.NewFromInt(1)
	}
	return c.def
}

// Set stores a coefficient. Negative values are rejected.
func (c *Coefficients) Set(activity academic.ActivityType, kind academic.HourKind, v decimal.Decimal) error {
	if !activity.Valid() {
		return fmt.Errorf("unknown activity type %q", activity)
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown hour kind %q", kind)
	}
	if v.IsNegative() {
		return fmt.Errorf("coefficient %s/%s is negative", activity, kind)
	}
	if c.values == nil {
		c.values = make(map[coefficientKey]decimal.Decimal)
	}
	c.values[coefficientKey{activity, kind}] = v
	return nil
}

// Lookup returns the coefficient for the pair, or the default.
func (c *Coefficients) Lookup(activity academic.ActivityType, kind academic.HourKind) decimal.Decimal {
	if c != nil {
		if v, ok := c.values[coefficientKey{activity, kind}]; ok {
			return v
		}
	}
	return c.Default()
}

// Entry is one explicit row of the table.
type Entry struct {
	Activity academic.ActivityType
	Kind     academic.HourKind
	Value    decimal.Decimal
}

// Entries lists the explicit rows sorted by activity type, then hour kind.
func (c *Coefficients) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.values))
	for k, v := range c.values {
		out = append(out, Entry{Activity: k.Activity, Kind: k.Kind, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Activity != out[j].Activity {
			return out[i].Activity < out[j].Activity
		}
		return kindOrder(out[i].Kind) < kindOrder(out[j].Kind)
	})
	return out
}

func kindOrder(k academic.HourKind) int {
	for i, kind := range academic.HourKinds {
		if kind == k {
			return i
		}
	}
	return len(academic.HourKinds)
}
