package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func line(desc, qty, price, rate string) LineItem {
	return LineItem{
		Description: desc,
		Quantity:    decimal.RequireFromString(qty),
		UnitPrice:   decimal.RequireFromString(price),
		TVARate:     decimal.RequireFromString(rate),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "%s: want %s, got %s", msg, want, got.String())
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name    string
		items   []LineItem
		wantHT  string
		wantTVA string
		wantTTC string
	}{
		{
			name:    "empty items",
			items:   nil,
			wantHT:  "0",
			wantTVA: "0",
			wantTTC: "0",
		},
		{
			name:    "single line 18%",
			items:   []LineItem{line("Ciment", "2", "1000", "18")},
			wantHT:  "2000",
			wantTVA: "360",
			wantTTC: "2360",
		},
		{
			name:    "zero rate",
			items:   []LineItem{line("Sable", "10", "150", "0")},
			wantHT:  "1500",
			wantTVA: "0",
			wantTTC: "1500",
		},
		{
			name: "mixed rates",
			items: []LineItem{
				line("Fer", "3", "2500", "18"),
				line("Transport", "1", "5000", "0"),
			},
			wantHT:  "12500",
			wantTVA: "1350",
			wantTTC: "13850",
		},
		{
			name:    "half-up rounding of line HT",
			items:   []LineItem{line("Vis", "3", "0.335", "18")},
			wantHT:  "1.01",
			wantTVA: "0.18",
			wantTTC: "1.19",
		},
		{
			name: "rounding applied per line before summation",
			items: []LineItem{
				line("A", "1", "0.125", "0"),
				line("B", "1", "0.125", "0"),
			},
			wantHT:  "0.26",
			wantTVA: "0",
			wantTTC: "0.26",
		},
		{
			name:    "rate outside offered set is computed generically",
			items:   []LineItem{line("Service", "1", "100", "10")},
			wantHT:  "100",
			wantTVA: "10",
			wantTTC: "110",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items)
			assertDecimal(t, tt.wantHT, got.TotalHT, "TotalHT")
			assertDecimal(t, tt.wantTVA, got.TotalTVA, "TotalTVA")
			assertDecimal(t, tt.wantTTC, got.TotalTTC, "TotalTTC")
		})
	}
}

func TestComputeTotals_TTCIsExactSum(t *testing.T) {
	quantities := []string{"0.5", "1", "1.25", "3", "7.33", "12"}
	prices := []string{"0", "0.01", "0.335", "99.99", "1000", "1234.567"}
	rates := []string{"0", "18"}

	var items []LineItem
	for _, q := range quantities {
		for _, p := range prices {
			for _, r := range rates {
				items = append(items, line("x", q, p, r))
			}
		}
	}

	got := ComputeTotals(items)
	assert.True(t, got.TotalTTC.Equal(got.TotalHT.Add(got.TotalTVA)))

	sumHT := decimal.Zero
	for _, it := range items {
		sumHT = sumHT.Add(it.Quantity.Mul(it.UnitPrice).Round(2))
	}
	assert.True(t, got.TotalHT.Equal(sumHT), "want %s got %s", sumHT, got.TotalHT)
}

func TestComputeTotals_Idempotent(t *testing.T) {
	items := []LineItem{line("A", "2", "19.99", "18"), line("B", "1.5", "3.333", "0")}
	first := ComputeTotals(items)
	second := ComputeTotals(items)
	assert.True(t, first.TotalHT.Equal(second.TotalHT))
	assert.True(t, first.TotalTVA.Equal(second.TotalTVA))
	assert.True(t, first.TotalTTC.Equal(second.TotalTTC))
}

func TestComputeLine(t *testing.T) {
	got := ComputeLine(line("Tôle", "4", "12.5", "18"))
	assertDecimal(t, "50", got.TotalHT, "TotalHT")
	assertDecimal(t, "9", got.TotalTVA, "TotalTVA")
	assertDecimal(t, "59", got.TotalTTC, "TotalTTC")
}

func TestIsAllowedTVARate(t *testing.T) {
	assert.True(t, IsAllowedTVARate(decimal.NewFromInt(0)))
	assert.True(t, IsAllowedTVARate(decimal.RequireFromString("18.00")))
	assert.False(t, IsAllowedTVARate(decimal.NewFromInt(20)))
}
