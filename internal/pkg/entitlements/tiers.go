package entitlements

import (
	"strings"
	"time"

	"github.com/accessradar/accessradar/app/models"
)

// ScanCreditsForTier returns the credit grant of an audit package.
func ScanCreditsForTier(tier string) int {
	switch strings.ToLower(tier) {
	case models.TierPro:
		return 15
	case models.TierBasic:
		return 5
	default:
		return 0
	}
}

// MonitoringLimits bundles the per-tier monitoring allowances.
type MonitoringLimits struct {
	Domains     int
	MonthlyRuns int
}

// MonitoringLimitsForTier returns the domain and monthly-run allowance of a
// monitoring package.
func MonitoringLimitsForTier(tier string) MonitoringLimits {
	switch strings.ToLower(tier) {
	case models.TierPro:
		return MonitoringLimits{Domains: 8, MonthlyRuns: 8}
	case models.TierBasic:
		return MonitoringLimits{Domains: 2, MonthlyRuns: 4}
	default:
		return MonitoringLimits{}
	}
}

// WeekdaysForTier returns the scheduled weekdays of the weekly monitoring
// cadence. Basic runs Mondays, pro adds Thursdays.
func WeekdaysForTier(tier string) []time.Weekday {
	switch strings.ToLower(tier) {
	case models.TierPro:
		return []time.Weekday{time.Monday, time.Thursday}
	case models.TierBasic:
		return []time.Weekday{time.Monday}
	default:
		return nil
	}
}

// NormalizeTier maps arbitrary input to a known tier, defaulting to basic for
// unrecognized paid tiers so a purchase always grants something.
func NormalizeTier(tier string) string {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case models.TierPro:
		return models.TierPro
	case models.TierBasic, "":
		return models.TierBasic
	default:
		return models.TierBasic
	}
}
