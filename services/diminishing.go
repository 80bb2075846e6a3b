package services

import (
	"fmt"
	"math"
	"time"

	"essence-engine/config"
)

// DiminishingTier applies Multiplier once MinCount same-day completions exist.
type DiminishingTier struct {
	MinCount   int64
	Multiplier float64
}

// DiminishingReturns shrinks awards as same-day, same-source completions pile up.
// Sources outside the configured families pass through unchanged.
type DiminishingReturns struct {
	enabled  bool
	bySource map[string][]DiminishingTier
}

// NewDiminishingReturns binds each source tag to its family's tier table.
func NewDiminishingReturns(enabled bool, tables map[string][]DiminishingTier, familyBySource map[string]string) (*DiminishingReturns, error) {
	for family, tiers := range tables {
		if err := validateTiers(tiers); err != nil {
			return nil, fmt.Errorf("diminishing family %q: %w", family, err)
		}
	}
	bySource := make(map[string][]DiminishingTier, len(familyBySource))
	for source, family := range familyBySource {
		if family == "" {
			continue
		}
		tiers, ok := tables[family]
		if !ok {
			return nil, fmt.Errorf("source %q references unknown diminishing family %q", source, family)
		}
		bySource[source] = append([]DiminishingTier(nil), tiers...)
	}
	return &DiminishingReturns{enabled: enabled, bySource: bySource}, nil
}

// DiminishingFromEconomy builds the calculator from the catalog.
func DiminishingFromEconomy(enabled bool, e *config.Economy) (*DiminishingReturns, error) {
	convert := func(in []config.TierConfig) []DiminishingTier {
		out := make([]DiminishingTier, 0, len(in))
		for _, t := range in {
			out = append(out, DiminishingTier{MinCount: t.MinCount, Multiplier: t.Multiplier})
		}
		return out
	}
	tables := map[string][]DiminishingTier{
		config.FamilyPrimary:   convert(e.Diminishing.Primary),
		config.FamilySecondary: convert(e.Diminishing.Secondary),
	}
	families := make(map[string]string, len(e.Sources))
	for _, s := range e.Sources {
		families[s.Tag] = s.Family
	}
	return NewDiminishingReturns(enabled, tables, families)
}

func validateTiers(tiers []DiminishingTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("no tiers")
	}
	if tiers[0].MinCount != 0 {
		return fmt.Errorf("first tier must start at 0, got %d", tiers[0].MinCount)
	}
	for i, t := range tiers {
		if t.Multiplier < 0 || t.Multiplier > 1 {
			return fmt.Errorf("tier %d multiplier %v outside [0,1]", i, t.Multiplier)
		}
		if i > 0 && t.MinCount <= tiers[i-1].MinCount {
			return fmt.Errorf("tier %d min_count %d not increasing", i, t.MinCount)
		}
	}
	return nil
}

// Applies reports whether source belongs to a diminishing family.
func (d *DiminishingReturns) Applies(source string) bool {
	_, ok := d.bySource[source]
	return ok
}

// Adjust returns floor(base * multiplier) for the tier countToday falls in.
func (d *DiminishingReturns) Adjust(source string, base, countToday int64) int64 {
	if !d.enabled {
		return base
	}
	tiers, ok := d.bySource[source]
	if !ok {
		return base
	}
	multiplier := tiers[0].Multiplier
	for _, t := range tiers {
		if countToday >= t.MinCount {
			multiplier = t.Multiplier
		}
	}
	return int64(math.Floor(float64(base) * multiplier))
}

// StartOfDay is midnight of now's calendar day in loc, expressed in UTC.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
}
