package store

import (
	"context"
	"errors"

	"cotizador/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Repository persists quotations and the user reference data behind admin
// history scoping. A saved quotation is immutable: there is no update or
// delete operation.
type Repository interface {
	// SaveQuotation writes the header and every line item in one
	// transaction; a header without its lines must never be observable.
	SaveQuotation(ctx context.Context, header domain.QuotationHeader, saleLines []domain.SaleLine, costLines []domain.CostLine) (string, error)
	// ListQuotations returns headers most recent first, scoped by the
	// actor's role: superadmin sees all, admin sees their own plus those of
	// users they manage, everyone else sees only their own.
	ListQuotations(ctx context.Context, actor domain.Actor) ([]domain.QuotationHeader, error)
	GetQuotation(ctx context.Context, quotationID string) (*domain.QuotationDetail, error)
	GetQuotationHeaders(ctx context.Context, quotationIDs []string) ([]domain.QuotationHeader, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
