package pricebook

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoTier is the normal outcome for a quantity that falls outside every
// defined tier for a (product, term) pair. Callers surface it as a per-line
// warning, not a failure.
var ErrNoTier = errors.New("no matching price tier")

// Tier is one (product, term, quantity-range) band with a single list price.
type Tier struct {
	Product       string
	TermMonths    int
	QtyMin        int
	QtyMax        int
	UnitListPrice decimal.Decimal
}

// Table is the loaded price table. It is built once at startup and never
// mutated afterwards, so lookups need no locking.
type Table struct {
	tiers []Tier
}

func NewTable(tiers []Tier) *Table {
	copied := make([]Tier, len(tiers))
	copy(copied, tiers)
	return &Table{tiers: copied}
}

// Resolve returns the unit list price tier for the given product, term and
// quantity. Duplicate or overlapping tiers are a known data-quality defect in
// vendor price sheets; the first tier in table order wins.
func (t *Table) Resolve(product string, termMonths int, quantity int) (Tier, error) {
	if quantity < 1 {
		return Tier{}, ErrNoTier
	}
	for _, tier := range t.tiers {
		if tier.Product != product || tier.TermMonths != termMonths {
			continue
		}
		if tier.QtyMin <= quantity && quantity <= tier.QtyMax {
			return tier, nil
		}
	}
	return Tier{}, ErrNoTier
}

// Terms returns the distinct contract terms present in the table, ascending.
func (t *Table) Terms() []int {
	seen := make(map[int]struct{})
	terms := make([]int, 0, 8)
	for _, tier := range t.tiers {
		if _, ok := seen[tier.TermMonths]; ok {
			continue
		}
		seen[tier.TermMonths] = struct{}{}
		terms = append(terms, tier.TermMonths)
	}
	sort.Ints(terms)
	return terms
}

// Products returns the distinct product titles offered for a term, sorted.
func (t *Table) Products(termMonths int) []string {
	seen := make(map[string]struct{})
	products := make([]string, 0, 16)
	for _, tier := range t.tiers {
		if tier.TermMonths != termMonths {
			continue
		}
		if _, ok := seen[tier.Product]; ok {
			continue
		}
		seen[tier.Product] = struct{}{}
		products = append(products, tier.Product)
	}
	sort.Strings(products)
	return products
}

func (t *Table) Len() int {
	return len(t.tiers)
}

// Column headers as exported by the vendor price sheet.
const (
	colProduct = "Product Title"
	colTerm    = "Term (Month)"
	colTierMin = "Tier Min"
	colTierMax = "Tier Max"
	colMSRP    = "MSRP USD"
)

// LoadCSV reads a normalized price table from a CSV export. Rows with
// non-numeric tier bounds or prices are dropped, matching how the ingestion
// side of the vendor sheet has always behaved.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pricebook: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read pricebook: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("pricebook %s is empty", path)
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colProduct, colTerm, colTierMin, colTierMax} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("pricebook %s: missing column %q", path, required)
		}
	}
	priceCol, ok := index[colMSRP]
	if !ok {
		// Some exports label the price column "MSRP".
		priceCol, ok = index["MSRP"]
		if !ok {
			return nil, fmt.Errorf("pricebook %s: missing column %q", path, colMSRP)
		}
	}

	tiers := make([]Tier, 0, len(records)-1)
	dropped := 0
	for _, row := range records[1:] {
		tier, err := parseTier(row, index, priceCol)
		if err != nil {
			dropped++
			continue
		}
		tiers = append(tiers, tier)
	}
	if dropped > 0 {
		log.Printf("[pricebook] dropped %d malformed row(s) from %s", dropped, path)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("pricebook %s: no usable rows", path)
	}

	log.Printf("[pricebook] loaded %d tier(s) from %s", len(tiers), path)
	return &Table{tiers: tiers}, nil
}

func parseTier(row []string, index map[string]int, priceCol int) (Tier, error) {
	field := func(col int) string {
		if col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	product := field(index[colProduct])
	if product == "" {
		return Tier{}, fmt.Errorf("empty product title")
	}
	term, err := strconv.Atoi(field(index[colTerm]))
	if err != nil {
		return Tier{}, fmt.Errorf("term: %w", err)
	}
	qtyMin, err := strconv.Atoi(field(index[colTierMin]))
	if err != nil {
		return Tier{}, fmt.Errorf("tier min: %w", err)
	}
	qtyMax, err := strconv.Atoi(field(index[colTierMax]))
	if err != nil {
		return Tier{}, fmt.Errorf("tier max: %w", err)
	}

	raw := strings.ReplaceAll(strings.TrimPrefix(field(priceCol), "$"), ",", "")
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return Tier{}, fmt.Errorf("msrp: %w", err)
	}

	return Tier{
		Product:       product,
		TermMonths:    term,
		QtyMin:        qtyMin,
		QtyMax:        qtyMax,
		UnitListPrice: price,
	}, nil
}

// Seeded returns a small built-in table for dev/demo mode, used when no
// PRICEBOOK_CSV is configured.
func Seeded() *Table {
	price := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return NewTable([]Tier{
		{Product: "ThreatDown Core", TermMonths: 12, QtyMin: 1, QtyMax: 49, UnitListPrice: price("49.99")},
		{Product: "ThreatDown Core", TermMonths: 12, QtyMin: 50, QtyMax: 249, UnitListPrice: price("44.99")},
		{Product: "ThreatDown Core", TermMonths: 36, QtyMin: 1, QtyMax: 49, UnitListPrice: price("134.99")},
		{Product: "ThreatDown Advanced", TermMonths: 12, QtyMin: 1, QtyMax: 50, UnitListPrice: price("69.99")},
		{Product: "ThreatDown Advanced", TermMonths: 12, QtyMin: 51, QtyMax: 250, UnitListPrice: price("62.99")},
		{Product: "ThreatDown Advanced", TermMonths: 36, QtyMin: 1, QtyMax: 50, UnitListPrice: price("188.99")},
		{Product: "ThreatDown Elite", TermMonths: 12, QtyMin: 1, QtyMax: 50, UnitListPrice: price("79.99")},
		{Product: "ThreatDown Elite", TermMonths: 12, QtyMin: 51, QtyMax: 250, UnitListPrice: price("71.99")},
		{Product: "ThreatDown Ultimate", TermMonths: 12, QtyMin: 1, QtyMax: 50, UnitListPrice: price("99.99")},
		{Product: "ThreatDown Ultimate", TermMonths: 12, QtyMin: 51, QtyMax: 250, UnitListPrice: price("89.99")},
		{Product: "ThreatDown Mobile Security", TermMonths: 12, QtyMin: 1, QtyMax: 250, UnitListPrice: price("29.99")},
	})
}
