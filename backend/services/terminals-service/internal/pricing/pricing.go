// Package pricing turns a rental duration into a price under a tiered rule set.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"lancenter/backend/services/terminals-service/internal/models"
)

// Calculate prices minutes of usage under rules after subtracting tolerance grace minutes.
//
// The remainder of a greedy decomposition that is smaller than the smallest rule costs one
// smallest-rule unit. A single larger block that is cheaper than the decomposition wins,
// and the result is capped by the cheapest price of any longer duration, so the price
// never decreases as minutes grow.
func Calculate(minutes int, rules []models.PriceRule, tolerance int) decimal.Decimal {
	if tolerance < 0 {
		tolerance = 0
	}
	effective := minutes - tolerance
	if effective <= 0 {
		return decimal.Zero
	}

	desc := usableRules(rules)
	if len(desc) == 0 {
		return decimal.Zero
	}

	best := ceiling(effective, desc)
	for _, rule := range desc {
		if rule.Minutes >= effective && rule.Price.LessThan(best) {
			best = rule.Price
		}
	}
	if best.IsNegative() {
		return decimal.Zero
	}
	return best
}

// ceiling returns the cheapest greedy price of any duration of at least effective minutes.
//
// Greedy prices a duration digit by digit, largest rule first. A longer duration either
// keeps the digits of effective down to some rule and then raises that rule's count by one
// with nothing left below it, or keeps every digit. Raising a higher count or adding more
// below only adds non-negative prices, so those candidates cover the minimum. desc must be
// non-empty and sorted by descending minutes.
func ceiling(effective int, desc []models.PriceRule) decimal.Decimal {
	prefix := decimal.Zero
	best := decimal.Zero
	found := false
	consider := func(price decimal.Decimal) {
		if !found || price.LessThan(best) {
			best = price
			found = true
		}
	}

	remaining := effective
	bound := 0
	for _, rule := range desc {
		count := remaining / rule.Minutes
		if bump := (count + 1) * rule.Minutes; bound == 0 || bump < bound {
			consider(prefix.Add(rule.Price.Mul(decimal.NewFromInt(int64(count + 1)))))
		}
		prefix = prefix.Add(rule.Price.Mul(decimal.NewFromInt(int64(count))))
		remaining %= rule.Minutes
		bound = rule.Minutes
		if remaining == 0 {
			consider(prefix)
			return best
		}
	}
	consider(prefix.Add(desc[len(desc)-1].Price))
	return best
}

// Quote prices a requested block of time under zone, without grace minutes.
func Quote(minutes int, zone models.Zone) decimal.Decimal {
	return Calculate(minutes, zone.Rules, 0)
}

// Elapsed prices used time under zone, applying its tolerance.
func Elapsed(minutes int, zone models.Zone) decimal.Decimal {
	return Calculate(minutes, zone.Rules, zone.Tolerance)
}

func usableRules(rules []models.PriceRule) []models.PriceRule {
	desc := make([]models.PriceRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Minutes > 0 {
			desc = append(desc, rule)
		}
	}
	sort.SliceStable(desc, func(i, j int) bool { return desc[i].Minutes > desc[j].Minutes })
	return desc
}
