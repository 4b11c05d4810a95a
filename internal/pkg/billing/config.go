package billing

import (
	"strconv"
	"strings"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/internal/pkg/entitlements"
	"github.com/accessradar/accessradar/internal/pkg/env"
)

// VariantMapping resolves provider variant ids to a purchase type and tier
// when the checkout custom data does not carry them.
type VariantMapping struct {
	auditBasic      map[int64]struct{}
	auditPro        map[int64]struct{}
	monitoringBasic map[int64]struct{}
	monitoringPro   map[int64]struct{}
}

// LoadVariantMapping reads the BILLING_*_VARIANT_IDS comma-separated lists.
func LoadVariantMapping() *VariantMapping {
	return &VariantMapping{
		auditBasic:      parseVariantSet(env.GetEnv("BILLING_AUDIT_BASIC_VARIANT_IDS", "")),
		auditPro:        parseVariantSet(env.GetEnv("BILLING_AUDIT_PRO_VARIANT_IDS", "")),
		monitoringBasic: parseVariantSet(env.GetEnv("BILLING_MONITORING_BASIC_VARIANT_IDS", "")),
		monitoringPro:   parseVariantSet(env.GetEnv("BILLING_MONITORING_PRO_VARIANT_IDS", "")),
	}
}

// Resolve returns the purchase type and tier for a variant id. An unknown
// variant still resolves: when only monitoring variants are configured the
// store clearly sells monitoring, otherwise the basic audit pack is the
// safest grant.
func (m *VariantMapping) Resolve(variantID int64) (purchaseType, tier string) {
	switch {
	case contains(m.auditBasic, variantID):
		return entitlements.PurchaseAudit, models.TierBasic
	case contains(m.auditPro, variantID):
		return entitlements.PurchaseAudit, models.TierPro
	case contains(m.monitoringBasic, variantID):
		return entitlements.PurchaseMonitoring, models.TierBasic
	case contains(m.monitoringPro, variantID):
		return entitlements.PurchaseMonitoring, models.TierPro
	}
	monitoringOnly := (len(m.monitoringBasic) > 0 || len(m.monitoringPro) > 0) &&
		len(m.auditBasic) == 0 && len(m.auditPro) == 0
	if monitoringOnly {
		return entitlements.PurchaseMonitoring, models.TierBasic
	}
	return entitlements.PurchaseAudit, models.TierBasic
}

func parseVariantSet(raw string) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil && id > 0 {
			out[id] = struct{}{}
		}
	}
	return out
}

func contains(set map[int64]struct{}, id int64) bool {
	_, ok := set[id]
	return ok
}
