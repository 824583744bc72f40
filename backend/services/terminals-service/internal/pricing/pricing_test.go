package pricing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lancenter/backend/services/terminals-service/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func promoRules() []models.PriceRule {
	return []models.PriceRule{
		{Minutes: 15, Price: d("0.50")},
		{Minutes: 30, Price: d("1.00")},
		{Minutes: 60, Price: d("1.50")},
		{Minutes: 180, Price: d("3.00")},
		{Minutes: 240, Price: d("4.00")},
	}
}

func TestCalculate(t *testing.T) {
	testCases := []struct {
		name      string
		minutes   int
		tolerance int
		rules     []models.PriceRule
		expected  string
	}{
		{name: "larger block beats greedy sum", minutes: 225, tolerance: 5, rules: promoRules(), expected: "4.00"},
		{name: "small overrun absorbed by tolerance", minutes: 182, tolerance: 5, rules: promoRules(), expected: "3.00"},
		{name: "hour tier beats halves and quarters", minutes: 55, tolerance: 5, rules: promoRules(), expected: "1.50"},
		{name: "zero minutes", minutes: 0, tolerance: 5, rules: promoRules(), expected: "0"},
		{name: "inside tolerance is free", minutes: 4, tolerance: 5, rules: promoRules(), expected: "0"},
		{name: "exact rule size", minutes: 60, tolerance: 0, rules: promoRules(), expected: "1.50"},
		{name: "exact largest rule", minutes: 240, tolerance: 0, rules: promoRules(), expected: "4.00"},
		{name: "remainder charged as smallest unit", minutes: 61, tolerance: 0, rules: promoRules(), expected: "2.00"},
		{name: "one minute still costs smallest unit", minutes: 1, tolerance: 0, rules: promoRules(), expected: "0.50"},
		{name: "multiples of largest rule", minutes: 480, tolerance: 0, rules: promoRules(), expected: "8.00"},
		{name: "negative tolerance treated as zero", minutes: 15, tolerance: -10, rules: promoRules(), expected: "0.50"},
		{name: "empty rule set", minutes: 120, tolerance: 0, rules: nil, expected: "0"},
		{name: "unsorted rules", minutes: 45, tolerance: 0, rules: []models.PriceRule{
			{Minutes: 60, Price: d("1.50")},
			{Minutes: 15, Price: d("0.50")},
			{Minutes: 30, Price: d("1.00")},
		}, expected: "1.50"},
		{name: "non positive rule sizes ignored", minutes: 30, tolerance: 0, rules: []models.PriceRule{
			{Minutes: 0, Price: d("0.01")},
			{Minutes: 30, Price: d("1.00")},
		}, expected: "1.00"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Calculate(tc.minutes, tc.rules, tc.tolerance)
			assert.True(t, got.Equal(d(tc.expected)), "got %s, want %s", got.String(), tc.expected)
		})
	}
}

func TestCalculateZeroForAnyRules(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		rules := randomRules(rng)
		assert.True(t, Calculate(0, rules, rng.Intn(20)).IsZero())
	}
}

// Greedy decomposition alone is not monotone: with 30/1.00 and 60/1.50, 91 minutes
// decomposes to 3.50 while 120 minutes costs 3.00.
func TestCalculateSparseRulesDoNotOvercharge(t *testing.T) {
	rules := []models.PriceRule{
		{Minutes: 30, Price: d("1.00")},
		{Minutes: 60, Price: d("1.50")},
	}

	assert.True(t, Calculate(120, rules, 0).Equal(d("3.00")))
	assert.True(t, Calculate(91, rules, 0).Equal(d("3.00")))
}

func TestCalculateMonotoneProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for set := 0; set < 40; set++ {
		rules := randomRules(rng)
		tolerance := rng.Intn(10)

		prev := decimal.Zero
		for minutes := 0; minutes <= 300; minutes++ {
			price := Calculate(minutes, rules, tolerance)
			require.False(t, price.LessThan(prev),
				"rules %v tol %d: price(%d)=%s < price(%d)=%s", rules, tolerance, minutes, price, minutes-1, prev)
			require.False(t, price.IsNegative())

			effective := minutes - tolerance
			for _, rule := range rules {
				if effective > 0 && rule.Minutes >= effective {
					require.False(t, price.GreaterThan(rule.Price),
						"price(%d)=%s exceeds larger block %d=%s", minutes, price, rule.Minutes, rule.Price)
				}
			}
			prev = price
		}
	}
}

// exhaustiveCeiling is the direct definition: the cheapest greedy or single-block price of
// every duration from effective up to one largest block beyond it.
func exhaustiveCeiling(minutes int, rules []models.PriceRule, tolerance int) decimal.Decimal {
	if tolerance < 0 {
		tolerance = 0
	}
	effective := minutes - tolerance
	desc := usableRules(rules)
	if effective <= 0 || len(desc) == 0 {
		return decimal.Zero
	}
	blockPrice := func(m int) decimal.Decimal {
		remaining := m
		price := decimal.Zero
		for _, rule := range desc {
			if remaining >= rule.Minutes {
				price = price.Add(rule.Price.Mul(decimal.NewFromInt(int64(remaining / rule.Minutes))))
				remaining %= rule.Minutes
			}
		}
		if remaining > 0 {
			price = price.Add(desc[len(desc)-1].Price)
		}
		for _, rule := range desc {
			if rule.Minutes >= m && rule.Price.LessThan(price) {
				price = rule.Price
			}
		}
		return price
	}
	best := blockPrice(effective)
	for m := effective + 1; m <= effective+desc[0].Minutes; m++ {
		if candidate := blockPrice(m); candidate.LessThan(best) {
			best = candidate
		}
	}
	return best
}

func TestCalculateMatchesExhaustiveCeiling(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for set := 0; set < 200; set++ {
		rules := randomRules(rng)
		tolerance := rng.Intn(10)
		for minutes := 0; minutes <= 400; minutes += 1 + rng.Intn(7) {
			want := exhaustiveCeiling(minutes, rules, tolerance)
			got := Calculate(minutes, rules, tolerance)
			require.True(t, got.Equal(want), "rules %v tol %d minutes %d: got %s want %s", rules, tolerance, minutes, got, want)
		}
	}
}

func TestCalculateWithVeryLongRule(t *testing.T) {
	rules := []models.PriceRule{
		{Minutes: 15, Price: d("0.50")},
		{Minutes: 20_000_000, Price: d("10.00")},
	}

	done := make(chan decimal.Decimal, 1)
	go func() { done <- Quote(60, models.Zone{Rules: rules}) }()

	select {
	case got := <-done:
		assert.True(t, got.Equal(d("2.00")), "got %s", got)
	case <-time.After(time.Second):
		t.Fatal("Quote did not return within a second")
	}
	assert.True(t, Calculate(30_000_000, rules, 0).Equal(d("20.00")))
}

func TestQuoteAndElapsed(t *testing.T) {
	zone := models.Zone{Tolerance: 5, Rules: promoRules()}

	assert.True(t, Quote(182, zone).Equal(d("3.50")))
	assert.True(t, Elapsed(182, zone).Equal(d("3.00")))
	assert.True(t, Quote(60, models.FallbackZone("t1")).Equal(d("1.50")))
}

func randomRules(rng *rand.Rand) []models.PriceRule {
	n := 1 + rng.Intn(4)
	rules := make([]models.PriceRule, 0, n)
	for i := 0; i < n; i++ {
		rules = append(rules, models.PriceRule{
			Minutes: 1 + rng.Intn(120),
			Price:   decimal.New(int64(rng.Intn(1000)), -2),
		})
	}
	return rules
}
