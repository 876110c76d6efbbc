package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cotizador/backend/internal/domain"
	"cotizador/backend/internal/store"
	"cotizador/backend/internal/xid"
)

type quotationRecord struct {
	header    domain.QuotationHeader
	saleLines []domain.SaleLine
	costLines []domain.CostLine
}

// Store is the in-memory repository used for dev mode and tests. It mirrors
// the postgres implementation's behavior, including role-scoped listing.
type Store struct {
	mu         sync.RWMutex
	quotations map[string]quotationRecord
	users      map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		quotations: make(map[string]quotationRecord),
		users:      make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store pre-populated with a small user graph: one
// superadmin, one admin, and two sellers managed by that admin.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, u := range []domain.UserAccount{
		{ID: "usr-root", Name: "Root", Email: "root@example.com", Role: domain.RoleSuperadmin},
		{ID: "usr-admin", Name: "Ana Torres", Email: "ana@example.com", Role: domain.RoleAdmin},
		{ID: "usr-vendor1", Name: "Luis Mena", Email: "luis@example.com", Role: domain.RoleUser, ManagerID: "usr-admin"},
		{ID: "usr-vendor2", Name: "Sofia Reyes", Email: "sofia@example.com", Role: domain.RoleUser, ManagerID: "usr-admin"},
	} {
		u.CreatedAt = now
		s.users[u.ID] = u
	}
	return s
}

func (s *Store) SaveQuotation(_ context.Context, header domain.QuotationHeader, saleLines []domain.SaleLine, costLines []domain.CostLine) (string, error) {
	if strings.TrimSpace(header.Client) == "" || strings.TrimSpace(header.Proposal) == "" {
		return "", store.ErrInvalidInput
	}
	if len(saleLines) == 0 && len(costLines) == 0 {
		return "", store.ErrInvalidInput
	}
	if header.ID == "" {
		header.ID = xid.New("q")
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}

	record := quotationRecord{
		header:    header,
		saleLines: append([]domain.SaleLine(nil), saleLines...),
		costLines: append([]domain.CostLine(nil), costLines...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.quotations[header.ID]; exists {
		return "", store.ErrInvalidInput
	}
	s.quotations[header.ID] = record
	return header.ID, nil
}

func (s *Store) ListQuotations(_ context.Context, actor domain.Actor) ([]domain.QuotationHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := func(ownerID string) bool {
		switch actor.Role {
		case domain.RoleSuperadmin:
			return true
		case domain.RoleAdmin:
			if ownerID == actor.ID {
				return true
			}
			owner, ok := s.users[ownerID]
			return ok && owner.ManagerID == actor.ID
		default:
			return ownerID == actor.ID
		}
	}

	headers := make([]domain.QuotationHeader, 0, len(s.quotations))
	for _, record := range s.quotations {
		if visible(record.header.OwnerUserID) {
			headers = append(headers, record.header)
		}
	}
	sortHeaders(headers)
	return headers, nil
}

func (s *Store) GetQuotation(_ context.Context, quotationID string) (*domain.QuotationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.quotations[quotationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &domain.QuotationDetail{
		Header:    record.header,
		SaleLines: append([]domain.SaleLine(nil), record.saleLines...),
		CostLines: append([]domain.CostLine(nil), record.costLines...),
	}, nil
}

func (s *Store) GetQuotationHeaders(_ context.Context, quotationIDs []string) ([]domain.QuotationHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	headers := make([]domain.QuotationHeader, 0, len(quotationIDs))
	for _, id := range quotationIDs {
		if record, ok := s.quotations[id]; ok {
			headers = append(headers, record.header)
		}
	}
	sortHeaders(headers)
	return headers, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if strings.TrimSpace(user.Name) == "" || strings.TrimSpace(user.Email) == "" {
		return store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return store.ErrInvalidInput
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrInvalidInput
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func sortHeaders(headers []domain.QuotationHeader) {
	sort.Slice(headers, func(i, j int) bool {
		if headers[i].Date != headers[j].Date {
			return headers[i].Date > headers[j].Date
		}
		return headers[i].CreatedAt.After(headers[j].CreatedAt)
	})
}
