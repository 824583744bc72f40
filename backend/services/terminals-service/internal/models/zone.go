package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceRule is one priced block of time.
type PriceRule struct {
	Minutes int             `json:"minutes"`
	Price   decimal.Decimal `json:"price"`
}

// Zone is a named rule set assignable to terminals.
type Zone struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenant_id"`
	Name      string      `json:"name"`
	Tolerance int         `json:"tolerance"`
	Rules     []PriceRule `json:"rules"`
	IsDefault bool        `json:"is_default"`
}

// SortedRules returns a copy of the rules ordered by ascending minutes.
func (z Zone) SortedRules() []PriceRule {
	rules := make([]PriceRule, len(z.Rules))
	copy(rules, z.Rules)
	sort.Slice(rules, func(i, j int) bool { return rules[i].Minutes < rules[j].Minutes })
	return rules
}

// FallbackZone is used for tenants that have not configured any zone.
func FallbackZone(tenantID string) Zone {
	return Zone{
		TenantID:  tenantID,
		Name:      "Standard",
		IsDefault: true,
		Rules: []PriceRule{
			{Minutes: 15, Price: decimal.RequireFromString("0.50")},
			{Minutes: 30, Price: decimal.RequireFromString("1.00")},
			{Minutes: 60, Price: decimal.RequireFromString("1.50")},
		},
	}
}
