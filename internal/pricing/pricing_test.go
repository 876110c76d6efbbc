package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"cotizador/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCascadeAppliesStagesSequentially(t *testing.T) {
	got := Cascade(dec("100"), []Discount{
		{Name: "item", Percent: dec("10")},
		{Name: "channel", Percent: dec("20")},
	})
	// 100 * 0.90 * 0.80 = 72, not 100 * (1 - 0.30) = 70.
	if !got.Equal(dec("72")) {
		t.Fatalf("cascade = %s, want 72", got)
	}
}

func TestCascadeNeverRaisesThePrice(t *testing.T) {
	base := dec("59.99")
	for _, percents := range [][]string{
		{"0", "0"},
		{"0.5", "0"},
		{"10", "15"},
		{"100", "0"},
		{"33.33", "66.67"},
	} {
		got := Cascade(base, []Discount{
			{Name: "a", Percent: dec(percents[0])},
			{Name: "b", Percent: dec(percents[1])},
		})
		if got.GreaterThan(base) {
			t.Fatalf("cascade(%s, %v) = %s exceeds base", base, percents, got)
		}
		allZero := percents[0] == "0" && percents[1] == "0"
		if allZero && !got.Equal(base) {
			t.Fatalf("cascade with zero discounts = %s, want identity %s", got, base)
		}
		if !allZero && got.Equal(base) {
			t.Fatalf("cascade(%v) should strictly lower the price", percents)
		}
	}
}

func TestCostScheduleGroupsChannelAndDealRegistration(t *testing.T) {
	schedule := CostSchedule(dec("10"), dec("5"), dec("5"))
	if len(schedule) != 2 {
		t.Fatalf("schedule has %d stages, want 2", len(schedule))
	}
	if !schedule[1].Percent.Equal(dec("10")) {
		t.Fatalf("combined channel stage = %s, want 10", schedule[1].Percent)
	}

	// 10.00 with 10% item then 5%+5% grouped: 10.00 * 0.90 * 0.90 = 8.10.
	unit := Cascade(dec("10.00"), schedule)
	if !unit.Equal(dec("8.10")) {
		t.Fatalf("unit cost = %s, want 8.10", unit)
	}
}

func TestBuildCostLinePreservesLineTotalInvariant(t *testing.T) {
	line := BuildCostLine("ThreatDown Advanced", 7, dec("69.99"), dec("12.5"), dec("5"), dec("2.5"))

	want := line.UnitFinalPrice.Mul(decimal.NewFromInt(7)).Round(2)
	if !line.LineTotal.Equal(want) {
		t.Fatalf("line total %s != unit final %s * 7", line.LineTotal, line.UnitFinalPrice)
	}
	if !line.ChannelDealDiscountPercent.Equal(dec("7.5")) {
		t.Fatalf("combined channel+deal percent = %s, want 7.5", line.ChannelDealDiscountPercent)
	}
}

func TestBuildSaleLineDiscountsTheListTotal(t *testing.T) {
	line := BuildSaleLine("ThreatDown Core", 10, dec("10.00"), dec("20"))

	if !line.ListLineTotal.Equal(dec("100.00")) {
		t.Fatalf("list line total = %s, want 100.00", line.ListLineTotal)
	}
	if !line.LineTotal.Equal(dec("80.00")) {
		t.Fatalf("sale line total = %s, want 80.00", line.LineTotal)
	}
}

// Scenario: one product, quantity 10, list 10.00, cost side 10% item and
// 5%+5% channel/deal, sale side 20% direct. The sale undercuts the cost and
// the quote carries a negative utility.
func TestAggregateNegativeUtility(t *testing.T) {
	cost := BuildCostLine("ThreatDown Core", 10, dec("10.00"), dec("10"), dec("5"), dec("5"))
	sale := BuildSaleLine("ThreatDown Core", 10, dec("10.00"), dec("20"))

	if !cost.UnitFinalPrice.Equal(dec("8.10")) {
		t.Fatalf("unit cost = %s, want 8.10", cost.UnitFinalPrice)
	}

	totals := Aggregate([]domain.CostLine{cost}, []domain.SaleLine{sale})
	if !totals.TotalCost.Equal(dec("81.00")) {
		t.Fatalf("total cost = %s, want 81.00", totals.TotalCost)
	}
	if !totals.TotalSale.Equal(dec("80.00")) {
		t.Fatalf("total sale = %s, want 80.00", totals.TotalSale)
	}
	if !totals.Utility.Equal(dec("-1.00")) {
		t.Fatalf("utility = %s, want -1.00", totals.Utility)
	}
	if !totals.MarginPercent.Equal(dec("-1.25")) {
		t.Fatalf("margin = %s, want -1.25", totals.MarginPercent)
	}
}

func TestAggregateZeroSaleReportsZeroMargin(t *testing.T) {
	cost := BuildCostLine("ThreatDown Core", 1, dec("50"), dec("0"), dec("0"), dec("0"))
	sale := BuildSaleLine("ThreatDown Core", 1, dec("50"), dec("100"))

	totals := Aggregate([]domain.CostLine{cost}, []domain.SaleLine{sale})
	if !totals.TotalSale.IsZero() {
		t.Fatalf("total sale = %s, want 0", totals.TotalSale)
	}
	if !totals.MarginPercent.IsZero() {
		t.Fatalf("margin = %s, want 0 when nothing is sold", totals.MarginPercent)
	}
	if !totals.Utility.Equal(dec("-50")) {
		t.Fatalf("utility = %s, want -50", totals.Utility)
	}
}

func TestValidPercentRange(t *testing.T) {
	for _, tc := range []struct {
		in string
		ok bool
	}{
		{"0", true},
		{"0.01", true},
		{"100", true},
		{"100.01", false},
		{"-0.01", false},
	} {
		if got := ValidPercent(dec(tc.in)); got != tc.ok {
			t.Fatalf("ValidPercent(%s) = %v, want %v", tc.in, got, tc.ok)
		}
	}
}

func TestEmptyQuotationAggregatesToZero(t *testing.T) {
	totals := Aggregate(nil, nil)
	if !totals.TotalSale.IsZero() || !totals.TotalCost.IsZero() || !totals.Utility.IsZero() || !totals.MarginPercent.IsZero() {
		t.Fatalf("empty aggregate = %+v, want all zero", totals)
	}
}
