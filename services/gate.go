package services

import (
	"time"

	"gorm.io/gorm"
)

// GateDecision is the outcome of an anti-abuse check.
type GateDecision int

const (
	GateGranted GateDecision = iota
	GateDuplicate
	GateActionLimit
	GateEssenceCap
)

func (d GateDecision) String() string {
	switch d {
	case GateGranted:
		return "granted"
	case GateDuplicate:
		return "duplicate"
	case GateActionLimit:
		return "hourly action limit"
	case GateEssenceCap:
		return "hourly essence cap"
	}
	return "unknown"
}

// AntiAbuseGate enforces idempotency and the rolling one-hour limits. The
// window is a live lookback from now, not a bucket.
type AntiAbuseGate struct {
	MaxActionsPerHour int64
	MaxEssencePerHour int64
}

const gateWindow = time.Hour

// Check runs on db (normally the award transaction). The essence cap looks at
// the sum before this request, so a request that crosses the cap is still
// granted in full.
func (g *AntiAbuseGate) Check(db *gorm.DB, userID, source, sourceID string, now time.Time) (GateDecision, error) {
	exists, err := transactionExists(db, userID, source, sourceID)
	if err != nil {
		return GateGranted, err
	}
	if exists {
		return GateDuplicate, nil
	}

	since := now.Add(-gateWindow)

	recent, err := countTransactionsSince(db, userID, source, since)
	if err != nil {
		return GateGranted, err
	}
	if recent >= g.MaxActionsPerHour {
		return GateActionLimit, nil
	}

	earned, err := sumEssenceSince(db, userID, since)
	if err != nil {
		return GateGranted, err
	}
	if earned >= g.MaxEssencePerHour {
		return GateEssenceCap, nil
	}
	return GateGranted, nil
}
