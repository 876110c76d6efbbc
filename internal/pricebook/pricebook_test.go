package pricebook

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestResolvePicksQuantityBand(t *testing.T) {
	table := Seeded()

	tier, err := table.Resolve("ThreatDown Advanced", 12, 25)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !tier.UnitListPrice.Equal(decimal.RequireFromString("69.99")) {
		t.Fatalf("unit list price = %s, want 69.99", tier.UnitListPrice)
	}

	tier, err = table.Resolve("ThreatDown Advanced", 12, 51)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !tier.UnitListPrice.Equal(decimal.RequireFromString("62.99")) {
		t.Fatalf("next band price = %s, want 62.99", tier.UnitListPrice)
	}
}

func TestResolveGapReturnsErrNoTier(t *testing.T) {
	table := Seeded()

	for _, tc := range []struct {
		product string
		term    int
		qty     int
	}{
		{"ThreatDown Advanced", 12, 251}, // above the last band
		{"ThreatDown Advanced", 24, 10},  // term not offered
		{"ThreatDown Nope", 12, 10},      // unknown product
		{"ThreatDown Advanced", 12, 0},   // below every band
	} {
		if _, err := table.Resolve(tc.product, tc.term, tc.qty); !errors.Is(err, ErrNoTier) {
			t.Fatalf("Resolve(%q, %d, %d): err = %v, want ErrNoTier", tc.product, tc.term, tc.qty, err)
		}
	}
}

func TestResolveOverlappingTiersFirstWins(t *testing.T) {
	table := NewTable([]Tier{
		{Product: "P", TermMonths: 12, QtyMin: 1, QtyMax: 100, UnitListPrice: decimal.RequireFromString("10")},
		{Product: "P", TermMonths: 12, QtyMin: 50, QtyMax: 200, UnitListPrice: decimal.RequireFromString("9")},
	})

	tier, err := table.Resolve("P", 12, 60)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !tier.UnitListPrice.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("overlap resolved to %s, want the first tier's 10", tier.UnitListPrice)
	}
}

func TestTermsAndProducts(t *testing.T) {
	table := Seeded()

	if got, want := table.Terms(), []int{12, 36}; !reflect.DeepEqual(got, want) {
		t.Fatalf("terms = %v, want %v", got, want)
	}

	products := table.Products(36)
	want := []string{"ThreatDown Advanced", "ThreatDown Core"}
	if !reflect.DeepEqual(products, want) {
		t.Fatalf("products(36) = %v, want %v", products, want)
	}

	if got := table.Products(24); len(got) != 0 {
		t.Fatalf("products(24) = %v, want empty", got)
	}
}

func TestLoadCSVDropsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricebook.csv")
	csv := `Product Title,Term (Month),Tier Min,Tier Max,MSRP USD
ThreatDown Core,12,1,49,"$49.99"
ThreatDown Core,12,50,abc,"$44.99"
,12,1,49,"$10.00"
ThreatDown Elite,12,1,50,"$1,079.99"
`
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("loaded %d tiers, want 2 (malformed rows dropped)", table.Len())
	}

	tier, err := table.Resolve("ThreatDown Elite", 12, 5)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !tier.UnitListPrice.Equal(decimal.RequireFromString("1079.99")) {
		t.Fatalf("price with currency formatting = %s, want 1079.99", tier.UnitListPrice)
	}
}

func TestLoadCSVRejectsMissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.csv")
	if err := os.WriteFile(path, []byte("Product Title,Term (Month)\nX,12\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := LoadCSV(path); err == nil {
		t.Fatal("expected an error for a sheet without tier columns")
	}
}
