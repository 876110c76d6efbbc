package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"cotizador/backend/internal/domain"
	"cotizador/backend/internal/store"
	"cotizador/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			role TEXT NOT NULL,
			manager_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS quotations (
			id TEXT PRIMARY KEY,
			client TEXT NOT NULL,
			contact TEXT NOT NULL DEFAULT '',
			proposal TEXT NOT NULL,
			date TEXT NOT NULL,
			responsible TEXT NOT NULL DEFAULT '',
			validity TEXT NOT NULL DEFAULT '',
			commercial_terms TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			total_sale NUMERIC(14,2) NOT NULL,
			total_cost NUMERIC(14,2) NOT NULL,
			utility NUMERIC(14,2) NOT NULL,
			margin NUMERIC(8,2) NOT NULL,
			owner_user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS line_items (
			id BIGSERIAL PRIMARY KEY,
			quotation_id TEXT NOT NULL REFERENCES quotations(id),
			product TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC(14,2) NOT NULL,
			unit_final_price NUMERIC(14,2) NOT NULL,
			line_total NUMERIC(14,2) NOT NULL,
			discount_percent NUMERIC(7,3) NOT NULL,
			extra_discount_percent NUMERIC(7,3) NOT NULL DEFAULT 0,
			origin TEXT NOT NULL CHECK (origin IN ('sale','cost'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_line_items_quotation ON line_items (quotation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_quotations_owner ON quotations (owner_user_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveQuotation(ctx context.Context, header domain.QuotationHeader, saleLines []domain.SaleLine, costLines []domain.CostLine) (string, error) {
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quotations (
			id, client, contact, proposal, date, responsible, validity,
			commercial_terms, status, total_sale, total_cost, utility, margin,
			owner_user_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, header.ID, header.Client, header.Contact, header.Proposal, header.Date,
		header.Responsible, header.ValidityText, header.CommercialTerms, header.Status,
		header.TotalSale, header.TotalCost, header.Utility, header.MarginPercent,
		header.OwnerUserID, header.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrInvalidInput
		}
		return "", err
	}

	for _, line := range saleLines {
		unitFinal := decimal.Zero
		if line.Quantity > 0 {
			unitFinal = line.LineTotal.Div(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO line_items (
				quotation_id, product, quantity, unit_price, unit_final_price,
				line_total, discount_percent, extra_discount_percent, origin
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,0,'sale')
		`, header.ID, line.Product, line.Quantity, line.UnitListPrice, unitFinal,
			line.LineTotal, line.DirectDiscountPercent)
		if err != nil {
			return "", err
		}
	}

	for _, line := range costLines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO line_items (
				quotation_id, product, quantity, unit_price, unit_final_price,
				line_total, discount_percent, extra_discount_percent, origin
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'cost')
		`, header.ID, line.Product, line.Quantity, line.UnitBasePrice, line.UnitFinalPrice,
			line.LineTotal, line.ItemDiscountPercent, line.ChannelDealDiscountPercent)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return header.ID, nil
}

const headerColumns = `id, client, contact, proposal, date, responsible, validity,
	commercial_terms, status, total_sale, total_cost, utility, margin,
	owner_user_id, created_at`

func scanHeader(row interface{ Scan(...any) error }) (domain.QuotationHeader, error) {
	var h domain.QuotationHeader
	err := row.Scan(
		&h.ID, &h.Client, &h.Contact, &h.Proposal, &h.Date, &h.Responsible,
		&h.ValidityText, &h.CommercialTerms, &h.Status, &h.TotalSale, &h.TotalCost,
		&h.Utility, &h.MarginPercent, &h.OwnerUserID, &h.CreatedAt,
	)
	if err != nil {
		return domain.QuotationHeader{}, err
	}
	h.CreatedAt = h.CreatedAt.UTC()
	return h, nil
}

func (s *Store) ListQuotations(ctx context.Context, actor domain.Actor) ([]domain.QuotationHeader, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch actor.Role {
	case domain.RoleSuperadmin:
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT %s FROM quotations
			ORDER BY date DESC, created_at DESC
		`, headerColumns))
	case domain.RoleAdmin:
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT %s FROM quotations
			WHERE owner_user_id IN (
				SELECT id FROM users WHERE manager_id = $1 OR id = $1
			)
			ORDER BY date DESC, created_at DESC
		`, headerColumns), actor.ID)
	default:
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT %s FROM quotations
			WHERE owner_user_id = $1
			ORDER BY date DESC, created_at DESC
		`, headerColumns), actor.ID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	headers := make([]domain.QuotationHeader, 0, 32)
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return headers, nil
}

func (s *Store) GetQuotation(ctx context.Context, quotationID string) (*domain.QuotationDetail, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM quotations WHERE id = $1
	`, headerColumns), quotationID)
	header, err := scanHeader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product, quantity, unit_price, unit_final_price, line_total,
			discount_percent, extra_discount_percent, origin
		FROM line_items
		WHERE quotation_id = $1
		ORDER BY id ASC
	`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	detail := &domain.QuotationDetail{
		Header:    header,
		SaleLines: make([]domain.SaleLine, 0, 8),
		CostLines: make([]domain.CostLine, 0, 8),
	}
	for rows.Next() {
		var (
			product              string
			quantity             int
			unitPrice            decimal.Decimal
			unitFinal            decimal.Decimal
			lineTotal            decimal.Decimal
			discountPercent      decimal.Decimal
			extraDiscountPercent decimal.Decimal
			origin               string
		)
		if err := rows.Scan(&product, &quantity, &unitPrice, &unitFinal, &lineTotal,
			&discountPercent, &extraDiscountPercent, &origin); err != nil {
			return nil, err
		}
		switch origin {
		case domain.OriginSale:
			detail.SaleLines = append(detail.SaleLines, domain.SaleLine{
				Product:               product,
				Quantity:              quantity,
				UnitListPrice:         unitPrice,
				ListLineTotal:         unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
				DirectDiscountPercent: discountPercent,
				LineTotal:             lineTotal,
			})
		case domain.OriginCost:
			detail.CostLines = append(detail.CostLines, domain.CostLine{
				Product:                    product,
				Quantity:                   quantity,
				UnitBasePrice:              unitPrice,
				ItemDiscountPercent:        discountPercent,
				ChannelDealDiscountPercent: extraDiscountPercent,
				UnitFinalPrice:             unitFinal,
				LineTotal:                  lineTotal,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) GetQuotationHeaders(ctx context.Context, quotationIDs []string) ([]domain.QuotationHeader, error) {
	headers := make([]domain.QuotationHeader, 0, len(quotationIDs))
	if len(quotationIDs) == 0 {
		return headers, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM quotations
		WHERE id = ANY($1)
		ORDER BY date DESC, created_at DESC
	`, headerColumns), quotationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return headers, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if strings.TrimSpace(user.Name) == "" || strings.TrimSpace(user.Email) == "" {
		return store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, manager_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.ID, user.Name, user.Email, user.Role, nullIfEmpty(user.ManagerID), user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role, COALESCE(manager_id,''), created_at
		FROM users
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.ManagerID, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
