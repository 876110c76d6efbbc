package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Actor is the already-identified user performing a request. Identity is
// established by the external auth layer and carried in the bearer token;
// the engine only consumes it for history scoping.
type Actor struct {
	ID        string
	Name      string
	Role      string
	ManagerID string
}

const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// UserAccount is the manager-graph reference record behind admin history
// scoping. Credentials live in the external identity layer, not here.
type UserAccount struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ManagerID string    `json:"manager_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	StatusDraft = "draft"
	StatusSent  = "sent"
	StatusWon   = "won"
	StatusLost  = "lost"
)

const (
	OriginSale = "sale"
	OriginCost = "cost"
)

// DraftLine is one requested product in a quotation draft. When
// ManualUnitPrice is set the tier resolver is skipped and the given price is
// used as the list price for both ledgers.
type DraftLine struct {
	Product                string           `json:"product"`
	TermMonths             int              `json:"term_months"`
	Quantity               int              `json:"quantity"`
	ItemDiscountPercent    decimal.Decimal  `json:"item_discount_percent"`
	ChannelDiscountPercent decimal.Decimal  `json:"channel_discount_percent"`
	DealRegDiscountPercent decimal.Decimal  `json:"deal_registration_discount_percent"`
	DirectDiscountPercent  decimal.Decimal  `json:"direct_discount_percent"`
	ManualUnitPrice        *decimal.Decimal `json:"manual_unit_price,omitempty"`
}

// QuotationDraft carries the in-progress quotation through the pipeline as an
// explicit value. Date is ISO yyyy-mm-dd; empty means today.
type QuotationDraft struct {
	Client          string      `json:"client"`
	Contact         string      `json:"contact"`
	Proposal        string      `json:"proposal"`
	Date            string      `json:"date"`
	Responsible     string      `json:"responsible"`
	ValidityText    string      `json:"validity"`
	CommercialTerms string      `json:"commercial_terms"`
	Status          string      `json:"status"`
	Lines           []DraftLine `json:"lines"`
}

// CostLine is one product on the internal cost ledger. The named discount
// percentages are retained for audit.
type CostLine struct {
	Product                    string          `json:"product"`
	Quantity                   int             `json:"quantity"`
	UnitBasePrice              decimal.Decimal `json:"unit_base_price"`
	ItemDiscountPercent        decimal.Decimal `json:"item_discount_percent"`
	ChannelDealDiscountPercent decimal.Decimal `json:"channel_deal_discount_percent"`
	UnitFinalPrice             decimal.Decimal `json:"unit_final_price"`
	LineTotal                  decimal.Decimal `json:"line_total"`
}

// SaleLine is one product on the client-facing sale ledger. Both the
// pre-discount list total and the discounted total are kept so document
// rendering can show the discount explicitly.
type SaleLine struct {
	Product               string          `json:"product"`
	Quantity              int             `json:"quantity"`
	UnitListPrice         decimal.Decimal `json:"unit_list_price"`
	ListLineTotal         decimal.Decimal `json:"list_line_total"`
	DirectDiscountPercent decimal.Decimal `json:"direct_discount_percent"`
	LineTotal             decimal.Decimal `json:"line_total"`
}

// LineWarning is a per-line advisory (e.g. no price tier matched). It never
// aborts the rest of the computation.
type LineWarning struct {
	Product string `json:"product"`
	Reason  string `json:"reason"`
}

type Totals struct {
	TotalSale     decimal.Decimal `json:"total_sale"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Utility       decimal.Decimal `json:"utility"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
}

// QuotationComputation is the result of pricing a draft: both ledgers, the
// aggregated totals, and any per-line warnings for excluded products.
type QuotationComputation struct {
	CostLines []CostLine    `json:"cost_lines"`
	SaleLines []SaleLine    `json:"sale_lines"`
	Warnings  []LineWarning `json:"warnings,omitempty"`
	Totals    Totals        `json:"totals"`
}

// QuotationHeader is immutable once persisted; there is no edit or delete
// path.
type QuotationHeader struct {
	ID              string          `json:"id"`
	Client          string          `json:"client"`
	Contact         string          `json:"contact"`
	Proposal        string          `json:"proposal"`
	Date            string          `json:"date"`
	Responsible     string          `json:"responsible"`
	ValidityText    string          `json:"validity"`
	CommercialTerms string          `json:"commercial_terms"`
	Status          string          `json:"status"`
	TotalSale       decimal.Decimal `json:"total_sale"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Utility         decimal.Decimal `json:"utility"`
	MarginPercent   decimal.Decimal `json:"margin_percent"`
	OwnerUserID     string          `json:"owner_user_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

type QuotationDetail struct {
	Header    QuotationHeader `json:"header"`
	SaleLines []SaleLine      `json:"sale_lines"`
	CostLines []CostLine      `json:"cost_lines"`
}

type SaveQuotationResponse struct {
	QuotationID string        `json:"quotation_id"`
	Totals      Totals        `json:"totals"`
	Warnings    []LineWarning `json:"warnings,omitempty"`
}

type DashboardClientCount struct {
	Client     string `json:"client"`
	Quotations int    `json:"quotations"`
}

type DashboardStatusCount struct {
	Status     string `json:"status"`
	Quotations int    `json:"quotations"`
}

type Dashboard struct {
	Quotations           int                    `json:"quotations"`
	TotalQuoted          decimal.Decimal        `json:"total_quoted"`
	TotalUtility         decimal.Decimal        `json:"total_utility"`
	AverageMarginPercent decimal.Decimal        `json:"average_margin_percent"`
	TopClients           []DashboardClientCount `json:"top_clients"`
	ByStatus             []DashboardStatusCount `json:"by_status"`
}
