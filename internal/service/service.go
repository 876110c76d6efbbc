package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cotizador/backend/internal/cache"
	"cotizador/backend/internal/domain"
	"cotizador/backend/internal/pricebook"
	"cotizador/backend/internal/pricing"
	"cotizador/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	pricebook   *pricebook.Table
	detailCache cache.DetailCache
	detailTTL   time.Duration
}

func New(repo store.Repository, table *pricebook.Table, detailCache cache.DetailCache, detailTTL time.Duration) *Service {
	if detailCache == nil {
		detailCache = cache.NoopDetailCache{}
	}
	if detailTTL <= 0 {
		detailTTL = 15 * time.Minute
	}

	return &Service{
		repo:        repo,
		pricebook:   table,
		detailCache: detailCache,
		detailTTL:   detailTTL,
	}
}

// Terms lists the contract terms available in the loaded price table.
func (s *Service) Terms() []int {
	return s.pricebook.Terms()
}

// Products lists the product titles quotable for a term.
func (s *Service) Products(termMonths int) ([]string, error) {
	if termMonths < 1 {
		return nil, fmt.Errorf("%w: term must be at least 1 month", store.ErrInvalidInput)
	}
	return s.pricebook.Products(termMonths), nil
}

// BuildQuotation prices a draft without persisting anything. All lines are
// validated up front so an invalid input never produces a partial
// computation; a missing price tier, by contrast, is a normal outcome that
// excludes the line with a warning and lets the rest proceed.
func (s *Service) BuildQuotation(draft domain.QuotationDraft) (domain.QuotationComputation, error) {
	for _, line := range draft.Lines {
		if err := validateDraftLine(line); err != nil {
			return domain.QuotationComputation{}, err
		}
	}

	comp := domain.QuotationComputation{
		CostLines: make([]domain.CostLine, 0, len(draft.Lines)),
		SaleLines: make([]domain.SaleLine, 0, len(draft.Lines)),
	}

	for _, line := range draft.Lines {
		listPrice, err := s.resolveListPrice(line)
		if err != nil {
			comp.Warnings = append(comp.Warnings, domain.LineWarning{
				Product: line.Product,
				Reason:  fmt.Sprintf("no price for term %d months at quantity %d", line.TermMonths, line.Quantity),
			})
			continue
		}

		comp.CostLines = append(comp.CostLines, pricing.BuildCostLine(
			line.Product, line.Quantity, listPrice,
			line.ItemDiscountPercent, line.ChannelDiscountPercent, line.DealRegDiscountPercent,
		))
		comp.SaleLines = append(comp.SaleLines, pricing.BuildSaleLine(
			line.Product, line.Quantity, listPrice, line.DirectDiscountPercent,
		))
	}

	comp.Totals = pricing.Aggregate(comp.CostLines, comp.SaleLines)
	return comp, nil
}

func (s *Service) resolveListPrice(line domain.DraftLine) (decimal.Decimal, error) {
	if line.ManualUnitPrice != nil {
		return *line.ManualUnitPrice, nil
	}
	tier, err := s.pricebook.Resolve(line.Product, line.TermMonths, line.Quantity)
	if err != nil {
		return decimal.Zero, err
	}
	return tier.UnitListPrice, nil
}

// SaveQuotation computes the draft and persists the header plus both ledgers
// in one atomic write. A failed save leaves no partial state; retrying is the
// caller's decision.
func (s *Service) SaveQuotation(ctx context.Context, draft domain.QuotationDraft) (domain.SaveQuotationResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.SaveQuotationResponse{}, fmt.Errorf("actor identity required")
	}

	draft.Client = strings.TrimSpace(draft.Client)
	draft.Proposal = strings.TrimSpace(draft.Proposal)
	if draft.Client == "" || draft.Proposal == "" {
		return domain.SaveQuotationResponse{}, fmt.Errorf("%w: client and proposal are required", store.ErrInvalidInput)
	}
	if draft.Date == "" {
		draft.Date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", draft.Date); err != nil {
		return domain.SaveQuotationResponse{}, fmt.Errorf("%w: date must be yyyy-mm-dd", store.ErrInvalidInput)
	}
	if draft.Status == "" {
		draft.Status = domain.StatusDraft
	}
	if !isValidStatus(draft.Status) {
		return domain.SaveQuotationResponse{}, fmt.Errorf("%w: unknown status %q", store.ErrInvalidInput, draft.Status)
	}

	comp, err := s.BuildQuotation(draft)
	if err != nil {
		return domain.SaveQuotationResponse{}, err
	}
	if len(comp.SaleLines) == 0 {
		return domain.SaveQuotationResponse{}, fmt.Errorf("%w: no priced lines to save", store.ErrInvalidInput)
	}

	header := domain.QuotationHeader{
		Client:          draft.Client,
		Contact:         strings.TrimSpace(draft.Contact),
		Proposal:        draft.Proposal,
		Date:            draft.Date,
		Responsible:     strings.TrimSpace(draft.Responsible),
		ValidityText:    strings.TrimSpace(draft.ValidityText),
		CommercialTerms: strings.TrimSpace(draft.CommercialTerms),
		Status:          draft.Status,
		TotalSale:       comp.Totals.TotalSale,
		TotalCost:       comp.Totals.TotalCost,
		Utility:         comp.Totals.Utility,
		MarginPercent:   comp.Totals.MarginPercent,
		OwnerUserID:     actor.ID,
		CreatedAt:       time.Now().UTC(),
	}

	id, err := s.repo.SaveQuotation(ctx, header, comp.SaleLines, comp.CostLines)
	if err != nil {
		return domain.SaveQuotationResponse{}, err
	}

	log.Printf("[service] quotation saved id=%s client=%q proposal=%q total_sale=%s margin=%s owner=%s",
		id, header.Client, header.Proposal, header.TotalSale.StringFixed(2), header.MarginPercent.StringFixed(2), actor.ID)

	return domain.SaveQuotationResponse{
		QuotationID: id,
		Totals:      comp.Totals,
		Warnings:    comp.Warnings,
	}, nil
}

// History returns the quotation headers visible to the calling actor, most
// recent first.
func (s *Service) History(ctx context.Context) ([]domain.QuotationHeader, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("actor identity required")
	}
	return s.repo.ListQuotations(ctx, actor)
}

// Detail returns a saved quotation with both line-item sets, for history
// views and document rendering collaborators.
func (s *Service) Detail(ctx context.Context, quotationID string) (*domain.QuotationDetail, error) {
	if strings.TrimSpace(quotationID) == "" {
		return nil, fmt.Errorf("%w: quotation id required", store.ErrInvalidInput)
	}

	key := "quote-detail:" + quotationID
	if cached, ok, err := s.detailCache.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: detail cache get failed id=%s: %v", quotationID, err)
	}

	detail, err := s.repo.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}

	if err := s.detailCache.Set(ctx, key, detail, s.detailTTL); err != nil {
		log.Printf("[service] WARN: detail cache set failed id=%s: %v", quotationID, err)
	}
	return detail, nil
}

// Compare returns the headers for a set of saved quotations so proposals can
// be viewed side by side.
func (s *Service) Compare(ctx context.Context, quotationIDs []string) ([]domain.QuotationHeader, error) {
	ids := make([]string, 0, len(quotationIDs))
	for _, id := range quotationIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one quotation id required", store.ErrInvalidInput)
	}
	return s.repo.GetQuotationHeaders(ctx, ids)
}

// Dashboard aggregates the actor-scoped history into summary metrics.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	headers, err := s.History(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}

	dash := domain.Dashboard{
		Quotations:   len(headers),
		TotalQuoted:  decimal.Zero,
		TotalUtility: decimal.Zero,
	}

	marginSum := decimal.Zero
	clientCounts := make(map[string]int)
	statusCounts := make(map[string]int)
	for _, h := range headers {
		dash.TotalQuoted = dash.TotalQuoted.Add(h.TotalSale)
		dash.TotalUtility = dash.TotalUtility.Add(h.Utility)
		marginSum = marginSum.Add(h.MarginPercent)
		clientCounts[h.Client]++
		statusCounts[h.Status]++
	}
	if len(headers) > 0 {
		dash.AverageMarginPercent = marginSum.Div(decimal.NewFromInt(int64(len(headers)))).Round(2)
	}

	dash.TopClients = make([]domain.DashboardClientCount, 0, len(clientCounts))
	for client, count := range clientCounts {
		dash.TopClients = append(dash.TopClients, domain.DashboardClientCount{Client: client, Quotations: count})
	}
	sort.Slice(dash.TopClients, func(i, j int) bool {
		if dash.TopClients[i].Quotations == dash.TopClients[j].Quotations {
			return dash.TopClients[i].Client < dash.TopClients[j].Client
		}
		return dash.TopClients[i].Quotations > dash.TopClients[j].Quotations
	})
	if len(dash.TopClients) > 10 {
		dash.TopClients = dash.TopClients[:10]
	}

	dash.ByStatus = make([]domain.DashboardStatusCount, 0, len(statusCounts))
	for status, count := range statusCounts {
		dash.ByStatus = append(dash.ByStatus, domain.DashboardStatusCount{Status: status, Quotations: count})
	}
	sort.Slice(dash.ByStatus, func(i, j int) bool {
		return dash.ByStatus[i].Status < dash.ByStatus[j].Status
	})

	return dash, nil
}

// RegisterUser records a user in the manager graph that backs admin history
// scoping. It carries no credentials; identity lives in the external auth
// layer.
func (s *Service) RegisterUser(ctx context.Context, user domain.UserAccount) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Role != domain.RoleAdmin && actor.Role != domain.RoleSuperadmin) {
		return fmt.Errorf("admin role required")
	}
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.TrimSpace(user.Email)
	if user.Name == "" || user.Email == "" {
		return fmt.Errorf("%w: name and email are required", store.ErrInvalidInput)
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if !isValidRole(user.Role) {
		return fmt.Errorf("%w: unknown role %q", store.ErrInvalidInput, user.Role)
	}
	if user.Role == domain.RoleUser && user.ManagerID == "" && actor.Role == domain.RoleAdmin {
		user.ManagerID = actor.ID
	}
	return s.repo.CreateUser(ctx, user)
}

// Users lists the registered user graph; admin-only, used for assigning
// quotation ownership in the UI.
func (s *Service) Users(ctx context.Context) ([]domain.UserAccount, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Role != domain.RoleAdmin && actor.Role != domain.RoleSuperadmin) {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListUsers(ctx)
}

func validateDraftLine(line domain.DraftLine) error {
	if strings.TrimSpace(line.Product) == "" {
		return fmt.Errorf("%w: product is required", store.ErrInvalidInput)
	}
	if line.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1 for %q", store.ErrInvalidInput, line.Product)
	}
	for _, p := range []decimal.Decimal{
		line.ItemDiscountPercent,
		line.ChannelDiscountPercent,
		line.DealRegDiscountPercent,
		line.DirectDiscountPercent,
	} {
		if !pricing.ValidPercent(p) {
			return fmt.Errorf("%w: discount percent out of range for %q", store.ErrInvalidInput, line.Product)
		}
	}
	// The summed channel+deal stage must itself stay within [0,100].
	if !pricing.ValidPercent(line.ChannelDiscountPercent.Add(line.DealRegDiscountPercent)) {
		return fmt.Errorf("%w: combined channel and deal registration discount exceeds 100%% for %q", store.ErrInvalidInput, line.Product)
	}
	if line.ManualUnitPrice != nil {
		if line.ManualUnitPrice.IsNegative() {
			return fmt.Errorf("%w: manual unit price must not be negative for %q", store.ErrInvalidInput, line.Product)
		}
	} else if line.TermMonths < 1 {
		return fmt.Errorf("%w: term must be at least 1 month for %q", store.ErrInvalidInput, line.Product)
	}
	return nil
}

func isValidStatus(status string) bool {
	switch status {
	case domain.StatusDraft, domain.StatusSent, domain.StatusWon, domain.StatusLost:
		return true
	default:
		return false
	}
}

func isValidRole(role string) bool {
	switch role {
	case domain.RoleSuperadmin, domain.RoleAdmin, domain.RoleUser:
		return true
	default:
		return false
	}
}
