package pricing

import (
	"github.com/shopspring/decimal"

	"cotizador/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Discount is one named percentage stage of a cascade.
type Discount struct {
	Name    string
	Percent decimal.Decimal
}

// Cascade applies the discounts to base as sequential multiplicative stages.
// No rounding happens between stages; callers round once when producing a
// line item.
func Cascade(base decimal.Decimal, discounts []Discount) decimal.Decimal {
	price := base
	for _, d := range discounts {
		price = price.Mul(hundred.Sub(d.Percent)).Div(hundred)
	}
	return price
}

// CostSchedule builds the internal cost-ledger cascade: the item discount
// first, then the channel and deal-registration percentages summed and
// applied as a single stage. The grouping matches the vendor's partner
// pricing sheet arithmetic.
func CostSchedule(item, channel, dealReg decimal.Decimal) []Discount {
	return []Discount{
		{Name: "item", Percent: item},
		{Name: "channel+deal_registration", Percent: channel.Add(dealReg)},
	}
}

// ValidPercent reports whether p is a usable discount percentage. Values
// outside [0,100] are caller input errors, rejected before any computation.
func ValidPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// BuildCostLine prices one product for the cost ledger. The unit price is
// rounded to 2 decimals only here, after the full cascade, and the line total
// is derived from the rounded unit price so that
// line_total == unit_final_price * quantity always holds.
func BuildCostLine(product string, quantity int, base, item, channel, dealReg decimal.Decimal) domain.CostLine {
	unitFinal := Cascade(base, CostSchedule(item, channel, dealReg)).Round(2)
	qty := decimal.NewFromInt(int64(quantity))
	return domain.CostLine{
		Product:                    product,
		Quantity:                   quantity,
		UnitBasePrice:              base.Round(2),
		ItemDiscountPercent:        item,
		ChannelDealDiscountPercent: channel.Add(dealReg),
		UnitFinalPrice:             unitFinal,
		LineTotal:                  unitFinal.Mul(qty).Round(2),
	}
}

// BuildSaleLine prices one product for the sale ledger. The direct discount
// applies to the full list total (list price x quantity), independently of
// the cost ledger.
func BuildSaleLine(product string, quantity int, listPrice, direct decimal.Decimal) domain.SaleLine {
	qty := decimal.NewFromInt(int64(quantity))
	listTotal := listPrice.Mul(qty)
	final := Cascade(listTotal, []Discount{{Name: "direct", Percent: direct}})
	return domain.SaleLine{
		Product:               product,
		Quantity:              quantity,
		UnitListPrice:         listPrice.Round(2),
		ListLineTotal:         listTotal.Round(2),
		DirectDiscountPercent: direct,
		LineTotal:             final.Round(2),
	}
}

// Aggregate sums both ledgers into header totals. It is purely numeric: the
// two ledgers need not reference the same products, which lets manually
// priced lines participate identically to catalog-resolved ones. A zero
// sale total yields a 0 margin rather than a division fault.
func Aggregate(costLines []domain.CostLine, saleLines []domain.SaleLine) domain.Totals {
	totalCost := decimal.Zero
	for _, line := range costLines {
		totalCost = totalCost.Add(line.LineTotal)
	}
	totalSale := decimal.Zero
	for _, line := range saleLines {
		totalSale = totalSale.Add(line.LineTotal)
	}

	utility := totalSale.Sub(totalCost)
	margin := decimal.Zero
	if totalSale.IsPositive() {
		margin = utility.Div(totalSale).Mul(hundred).Round(2)
	}

	return domain.Totals{
		TotalSale:     totalSale,
		TotalCost:     totalCost,
		Utility:       utility,
		MarginPercent: margin,
	}
}
