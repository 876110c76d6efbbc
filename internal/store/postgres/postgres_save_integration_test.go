package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cotizador/backend/internal/domain"
)

func TestSaveQuotationPersistsBothLedgersAtomically(t *testing.T) {
	databaseURL := os.Getenv("COTIZADOR_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set COTIZADOR_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	quotationID := fmt.Sprintf("q-save-it-%d", stamp)
	ownerID := fmt.Sprintf("usr-save-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM line_items WHERE quotation_id = $1`, quotationID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM quotations WHERE id = $1`, quotationID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, ownerID)
	})

	if err := s.CreateUser(ctx, domain.UserAccount{
		ID:    ownerID,
		Name:  "Integration Seller",
		Email: fmt.Sprintf("seller-%d@example.com", stamp),
		Role:  domain.RoleUser,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dec := decimal.RequireFromString
	header := domain.QuotationHeader{
		ID:            quotationID,
		Client:        "Integration Client",
		Proposal:      fmt.Sprintf("IT-%d", stamp),
		Date:          "2026-09-01",
		Status:        domain.StatusDraft,
		TotalSale:     dec("80.00"),
		TotalCost:     dec("81.00"),
		Utility:       dec("-1.00"),
		MarginPercent: dec("-1.25"),
		OwnerUserID:   ownerID,
	}
	saleLines := []domain.SaleLine{{
		Product:               "ThreatDown Core",
		Quantity:              10,
		UnitListPrice:         dec("10.00"),
		ListLineTotal:         dec("100.00"),
		DirectDiscountPercent: dec("20"),
		LineTotal:             dec("80.00"),
	}}
	costLines := []domain.CostLine{{
		Product:                    "ThreatDown Core",
		Quantity:                   10,
		UnitBasePrice:              dec("10.00"),
		ItemDiscountPercent:        dec("10"),
		ChannelDealDiscountPercent: dec("10"),
		UnitFinalPrice:             dec("8.10"),
		LineTotal:                  dec("81.00"),
	}}

	id, err := s.SaveQuotation(ctx, header, saleLines, costLines)
	if err != nil {
		t.Fatalf("save quotation: %v", err)
	}
	if id != quotationID {
		t.Fatalf("saved id = %s, want %s", id, quotationID)
	}

	detail, err := s.GetQuotation(ctx, quotationID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	if len(detail.SaleLines) != 1 || len(detail.CostLines) != 1 {
		t.Fatalf("ledgers = %d sale / %d cost, want 1/1", len(detail.SaleLines), len(detail.CostLines))
	}
	if !detail.CostLines[0].UnitFinalPrice.Equal(dec("8.10")) {
		t.Fatalf("cost unit final = %s, want 8.10", detail.CostLines[0].UnitFinalPrice)
	}
	if !detail.CostLines[0].ChannelDealDiscountPercent.Equal(dec("10")) {
		t.Fatalf("channel+deal percent = %s, want 10", detail.CostLines[0].ChannelDealDiscountPercent)
	}
	if !detail.Header.Utility.Equal(dec("-1.00")) {
		t.Fatalf("utility = %s, want -1.00", detail.Header.Utility)
	}

	// A duplicate id must fail cleanly and leave the stored row untouched.
	if _, err := s.SaveQuotation(ctx, header, saleLines, costLines); err == nil {
		t.Fatal("expected duplicate quotation id to be rejected")
	}

	var lineCount int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM line_items WHERE quotation_id = $1
	`, quotationID).Scan(&lineCount); err != nil {
		t.Fatalf("count lines: %v", err)
	}
	if lineCount != 2 {
		t.Fatalf("line count = %d, want 2 (failed retry must not duplicate lines)", lineCount)
	}

	headers, err := s.ListQuotations(ctx, domain.Actor{ID: ownerID, Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("list quotations: %v", err)
	}
	if len(headers) != 1 || headers[0].ID != quotationID {
		t.Fatalf("owner history = %v, want the saved quotation", headers)
	}
}
