package billing

import (
	"github.com/shopspring/decimal"
)

// TVA rates offered for products and line items (percent).
var (
	TVARateZero     = decimal.Zero
	TVARateStandard = decimal.NewFromInt(18)

	AllowedTVARates = []decimal.Decimal{TVARateZero, TVARateStandard}
)

var hundred = decimal.NewFromInt(100)

// LineItem is the monetary input of a single document line.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TVARate     decimal.Decimal // percent, e.g. 18
}

// LineTotals holds the derived amounts of one line.
type LineTotals struct {
	TotalHT  decimal.Decimal
	TotalTVA decimal.Decimal
	TotalTTC decimal.Decimal
}

// Totals holds the document-level amounts.
type Totals struct {
	TotalHT  decimal.Decimal
	TotalTVA decimal.Decimal
	TotalTTC decimal.Decimal
}

// Round2 rounds a monetary value to 2 decimals, half-up for non-negative values.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeLine derives HT, TVA and TTC for a single line. HT and TVA are each
// rounded to 2 decimals; TTC is their exact sum.
func ComputeLine(item LineItem) LineTotals {
	ht := Round2(item.Quantity.Mul(item.UnitPrice))
	tva := Round2(ht.Mul(item.TVARate).Div(hundred))
	return LineTotals{
		TotalHT:  ht,
		TotalTVA: tva,
		TotalTTC: ht.Add(tva),
	}
}

// ComputeTotals sums the already-rounded line values. Sums are never rounded
// again and TotalTTC is always TotalHT + TotalTVA. An empty slice yields zero totals.
func ComputeTotals(items []LineItem) Totals {
	totals := Totals{
		TotalHT:  decimal.Zero,
		TotalTVA: decimal.Zero,
	}
	for _, item := range items {
		line := ComputeLine(item)
		totals.TotalHT = totals.TotalHT.Add(line.TotalHT)
		totals.TotalTVA = totals.TotalTVA.Add(line.TotalTVA)
	}
	totals.TotalTTC = totals.TotalHT.Add(totals.TotalTVA)
	return totals
}

// IsAllowedTVARate reports whether rate is one of the rates offered to users.
func IsAllowedTVARate(rate decimal.Decimal) bool {
	for _, allowed := range AllowedTVARates {
		if rate.Equal(allowed) {
			return true
		}
	}
	return false
}

// HasCentPrecision reports whether d carries at most 2 significant decimals,
// the scale of every stored quantity and amount.
func HasCentPrecision(d decimal.Decimal) bool {
	return d.Equal(Round2(d))
}
