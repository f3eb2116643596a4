package service

import (
	"context"
	"fmt"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/export"
	"backoffice/internal/model"
	"backoffice/internal/pdf"
	"backoffice/internal/repository"
)

// --- DTOs ---

// InvoiceRequest creates or replaces a draft invoice. Totals are never read
// from the payload.
type InvoiceRequest struct {
	Client  string            `json:"client" binding:"required"`
	Date    string            `json:"date" binding:"omitempty,datetime=2006-01-02"`
	DueDate *string           `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Notes   string            `json:"notes"`
	Items   []LineItemRequest `json:"items" binding:"dive"`
}

type InvoiceResponse struct {
	ID             string             `json:"id"`
	Number         string             `json:"number"`
	Client         string             `json:"client"`
	ClientDetail   *ClientSummary     `json:"client_detail"`
	CreatedBy      string             `json:"created_by"`
	CreatedByName  string             `json:"created_by_name"`
	Status         string             `json:"status"`
	StatusDisplay  string             `json:"status_display"`
	StatusColor    string             `json:"status_color"`
	Actions        []string           `json:"actions"`
	Date           string             `json:"date"`
	DueDate        *string            `json:"due_date"`
	Notes          string             `json:"notes"`
	TotalHT        string             `json:"total_ht"`
	TotalTVA       string             `json:"total_tva"`
	TotalTTC       string             `json:"total_ttc"`
	SourceProforma *string            `json:"source_proforma"`
	Items          []LineItemResponse `json:"items"`
	CreatedAt      string             `json:"created_at"`
	UpdatedAt      string             `json:"updated_at"`
}

// InvoiceDashboard summarizes the invoices dated in the current month.
type InvoiceDashboard struct {
	TotalInvoicesMonth int64  `json:"total_invoices_month"`
	TotalAmountMonth   string `json:"total_amount_month"`
	PaidInvoices       int64  `json:"paid_invoices"`
	PendingInvoices    int64  `json:"pending_invoices"`
	PaidAmount         string `json:"paid_amount"`
}

// --- Interface ---

type InvoiceService interface {
	ListInvoices(ctx context.Context, q DocumentListQuery, page, limit int) ([]InvoiceResponse, int64, error)
	GetInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	CreateInvoice(ctx context.Context, actor auth.Principal, req InvoiceRequest) (InvoiceResponse, error)
	UpdateInvoice(ctx context.Context, actor auth.Principal, id string, req InvoiceRequest) (InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, actor auth.Principal, id string) error
	Finalize(ctx context.Context, actor auth.Principal, id string) (InvoiceResponse, error)
	MarkPaid(ctx context.Context, actor auth.Principal, id string) (InvoiceResponse, error)
	Cancel(ctx context.Context, actor auth.Principal, id string) (InvoiceResponse, error)
	Dashboard(ctx context.Context) (InvoiceDashboard, error)
	Export(ctx context.Context, q DocumentListQuery) ([]byte, error)
	RenderPDF(ctx context.Context, id string) ([]byte, string, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	clientRepo  repository.ClientRepository
	productRepo repository.ProductRepository
	renderer    *pdf.Renderer
	infra       *Infra
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	clientRepo repository.ClientRepository,
	productRepo repository.ProductRepository,
	renderer *pdf.Renderer,
	infra *Infra,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		clientRepo:  clientRepo,
		productRepo: productRepo,
		renderer:    renderer,
		infra:       infra,
	}
}

var invoiceAuditActions = map[billing.InvoiceAction]string{
	billing.ActionFinalize: model.ActionFinalizeInvoice,
	billing.ActionMarkPaid: model.ActionMarkInvoicePaid,
	billing.ActionCancel:   model.ActionCancelInvoice,
}

// --- Implementation ---

func (s *invoiceService) ListInvoices(ctx context.Context, q DocumentListQuery, page, limit int) ([]InvoiceResponse, int64, error) {
	filter, err := q.filter()
	if err != nil {
		return nil, 0, err
	}
	invoices, total, err := s.invoiceRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	result := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		result = append(result, toInvoiceResponse(&invoices[i]))
	}
	return result, total, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return toInvoiceResponse(inv), nil
}

func (s *invoiceService) load(ctx context.Context, id string) (*model.Invoice, error) {
	invoiceID, err := parseID(id, "invoice")
	if err != nil {
		return nil, err
	}
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, lookupErr(err, "invoice")
	}
	return inv, nil
}

// header validates everything but the items and returns the unsaved invoice.
func (s *invoiceService) header(ctx context.Context, req InvoiceRequest) (*model.Invoice, error) {
	clientID, err := requireClient(ctx, s.clientRepo, req.Client)
	if err != nil {
		return nil, err
	}
	date := s.infra.today()
	if req.Date != "" {
		if date, err = parseDate(req.Date, "date"); err != nil {
			return nil, err
		}
	}
	dueDate, err := parseOptionalDate(req.DueDate, "due_date")
	if err != nil {
		return nil, err
	}
	if dueDate != nil && dueDate.Before(date) {
		return nil, billing.Errorf(billing.ErrValidation, "due_date must not be before date")
	}
	return &model.Invoice{ClientID: clientID, Date: date, DueDate: dueDate, Notes: req.Notes}, nil
}

func toInvoiceItems(lines []resolvedLine) []model.InvoiceItem {
	items := make([]model.InvoiceItem, len(lines))
	for i, l := range lines {
		items[i] = model.InvoiceItem{
			ProductID:   l.ProductID,
			Description: l.Item.Description,
			Quantity:    l.Item.Quantity,
			UnitPrice:   l.Item.UnitPrice,
			TVARate:     l.Item.TVARate,
		}
	}
	return items
}

func (s *invoiceService) CreateInvoice(ctx context.Context, actor auth.Principal, req InvoiceRequest) (InvoiceResponse, error) {
	inv, err := s.header(ctx, req)
	if err != nil {
		return InvoiceResponse{}, err
	}
	lines, err := resolveLines(ctx, s.productRepo, req.Items)
	if err != nil {
		return InvoiceResponse{}, err
	}
	inv.CreatedByID = actor.UserID
	inv.Status = billing.InvoiceDraft
	inv.Items = toInvoiceItems(lines)
	inv.ApplyTotals()

	err = s.infra.createNumbered(ctx, func(txCtx context.Context) error {
		return s.insert(txCtx, actor, inv)
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.infra.publish("invoice.created", map[string]string{"id": inv.ID.String(), "number": inv.Number})
	return s.GetInvoice(ctx, inv.ID.String())
}

// insert numbers and stores inv inside the caller's transaction.
func (s *invoiceService) insert(txCtx context.Context, actor auth.Principal, inv *model.Invoice) error {
	return insertInvoice(txCtx, s.infra, s.invoiceRepo, actor, inv)
}

func insertInvoice(txCtx context.Context, in *Infra, repo repository.InvoiceRepository, actor auth.Principal, inv *model.Invoice) error {
	number, err := repo.NextNumber(txCtx, in.numberPrefix(PrefixInvoice))
	if err != nil {
		return fmt.Errorf("failed to generate invoice number: %w", err)
	}
	inv.Number = number
	if err := repo.Create(txCtx, inv); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	details := map[string]string{"total_ttc": money(inv.TotalTTC)}
	if inv.SourceProformaID != nil {
		details["source_proforma"] = inv.SourceProformaID.String()
	}
	return in.audit(txCtx, actor, model.ActionCreateInvoice, inv.ID.String(), inv.Number, details)
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, actor auth.Principal, id string, req InvoiceRequest) (InvoiceResponse, error) {
	invoiceID, err := parseID(id, "invoice")
	if err != nil {
		return InvoiceResponse{}, err
	}
	header, err := s.header(ctx, req)
	if err != nil {
		return InvoiceResponse{}, err
	}
	lines, err := resolveLines(ctx, s.productRepo, req.Items)
	if err != nil {
		return InvoiceResponse{}, err
	}

	err = s.infra.withLock(ctx, "invoice:"+invoiceID.String(), func() error {
		return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
			inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
			if err != nil {
				return lookupErr(err, "invoice")
			}
			if !inv.Status.CanEdit() {
				return billing.Errorf(billing.ErrNotEditable, "invoice %s is %s and can no longer be modified", inv.Number, inv.Status)
			}

			inv.ClientID = header.ClientID
			inv.Date = header.Date
			inv.DueDate = header.DueDate
			inv.Notes = header.Notes
			inv.Items = toInvoiceItems(lines)
			inv.ApplyTotals()

			if err := s.invoiceRepo.UpdateHeader(txCtx, inv); err != nil {
				return fmt.Errorf("failed to update invoice: %w", err)
			}
			if err := s.invoiceRepo.ReplaceItems(txCtx, inv.ID, inv.Items); err != nil {
				return fmt.Errorf("failed to replace invoice items: %w", err)
			}
			return s.infra.audit(txCtx, actor, model.ActionUpdateInvoice, inv.ID.String(), inv.Number, map[string]string{
				"total_ttc": money(inv.TotalTTC),
			})
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.infra.publish("invoice.updated", map[string]string{"id": invoiceID.String()})
	return s.GetInvoice(ctx, invoiceID.String())
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, actor auth.Principal, id string) error {
	invoiceID, err := parseID(id, "invoice")
	if err != nil {
		return err
	}

	var number string
	err = s.infra.withLock(ctx, "invoice:"+invoiceID.String(), func() error {
		return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
			inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
			if err != nil {
				return lookupErr(err, "invoice")
			}
			if !inv.Status.CanEdit() {
				return billing.Errorf(billing.ErrNotEditable, "invoice %s is %s and cannot be deleted", inv.Number, inv.Status)
			}
			number = inv.Number
			if err := s.invoiceRepo.Delete(txCtx, inv.ID); err != nil {
				return fmt.Errorf("failed to delete invoice: %w", err)
			}
			return s.infra.audit(txCtx, actor, model.ActionDeleteInvoice, inv.ID.String(), inv.Number, nil)
		})
	})
	if err != nil {
		return err
	}

	s.infra.publish("invoice.deleted", map[string]string{"id": invoiceID.String(), "number": number})
	return nil
}

func (s *invoiceService) Finalize(ctx context.Context, actor auth.Principal, id string) (InvoiceResponse, error) {
	return s.apply(ctx, actor, id, billing.ActionFinalize)
}

func (s *invoiceService) MarkPaid(ctx context.Context, actor auth.Principal, id string) (InvoiceResponse, error) {
	return s.apply(ctx, actor, id, billing.ActionMarkPaid)
}

func (s *invoiceService) Cancel(ctx context.Context, actor auth.Principal, id string) (InvoiceResponse, error) {
	return s.apply(ctx, actor, id, billing.ActionCancel)
}

// apply runs one lifecycle transition with the invoice row locked. The status
// update is conditional so a concurrent transition leaves exactly one winner.
func (s *invoiceService) apply(ctx context.Context, actor auth.Principal, id string, action billing.InvoiceAction) (InvoiceResponse, error) {
	invoiceID, err := parseID(id, "invoice")
	if err != nil {
		return InvoiceResponse{}, err
	}

	var from, to billing.InvoiceStatus
	err = s.infra.withLock(ctx, "invoice:"+invoiceID.String(), func() error {
		return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
			inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
			if err != nil {
				return lookupErr(err, "invoice")
			}

			from = inv.Status
			if action == billing.ActionFinalize {
				to, err = billing.FinalizeInvoice(inv.Status, inv.LineItems())
			} else {
				to, err = billing.NextInvoiceStatus(inv.Status, action)
			}
			if err != nil {
				return err
			}

			ok, err := s.invoiceRepo.UpdateStatus(txCtx, inv.ID, from, to)
			if err != nil {
				return fmt.Errorf("failed to update invoice status: %w", err)
			}
			if !ok {
				return billing.Errorf(billing.ErrInvalidTransition, "invoice %s changed status concurrently", inv.Number)
			}
			return s.infra.audit(txCtx, actor, invoiceAuditActions[action], inv.ID.String(), inv.Number, map[string]string{
				"from": string(from),
				"to":   string(to),
			})
		})
	})
	s.infra.transition("invoice", string(action), err)
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.infra.publish("invoice."+string(to), map[string]string{"id": invoiceID.String(), "from": string(from), "to": string(to)})
	return s.GetInvoice(ctx, invoiceID.String())
}

func (s *invoiceService) Dashboard(ctx context.Context) (InvoiceDashboard, error) {
	from, to := s.infra.currentMonth()
	stats, err := s.invoiceRepo.Stats(ctx, from, to)
	if err != nil {
		return InvoiceDashboard{}, fmt.Errorf("failed to compute invoice stats: %w", err)
	}
	return InvoiceDashboard{
		TotalInvoicesMonth: stats.Count,
		TotalAmountMonth:   money(stats.Amount),
		PaidInvoices:       stats.PaidCount,
		PendingInvoices:    stats.PendingCount,
		PaidAmount:         money(stats.PaidAmount),
	}, nil
}

func (s *invoiceService) Export(ctx context.Context, q DocumentListQuery) ([]byte, error) {
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoiceRepo.ListAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return export.Invoices(invoices)
}

func (s *invoiceService) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	out, err := s.renderer.Invoice(inv)
	if err != nil {
		return nil, "", err
	}
	return out, pdf.Filename(inv.Number), nil
}

// --- Mapping ---

func toInvoiceResponse(inv *model.Invoice) InvoiceResponse {
	actions := billing.InvoiceActions(inv.Status)
	resp := InvoiceResponse{
		ID:             inv.ID.String(),
		Number:         inv.Number,
		Client:         inv.ClientID.String(),
		ClientDetail:   toClientSummary(inv.Client),
		CreatedBy:      inv.CreatedByID.String(),
		CreatedByName:  creatorName(inv.CreatedBy),
		Status:         string(inv.Status),
		StatusDisplay:  inv.Status.Label(),
		StatusColor:    inv.Status.Color(),
		Actions:        make([]string, len(actions)),
		Date:           formatDate(inv.Date),
		DueDate:        formatOptionalDate(inv.DueDate),
		Notes:          inv.Notes,
		TotalHT:        money(inv.TotalHT),
		TotalTVA:       money(inv.TotalTVA),
		TotalTTC:       money(inv.TotalTTC),
		SourceProforma: optionalID(inv.SourceProformaID),
		Items:          make([]LineItemResponse, len(inv.Items)),
		CreatedAt:      formatTimestamp(inv.CreatedAt),
		UpdatedAt:      formatTimestamp(inv.UpdatedAt),
	}
	for i, a := range actions {
		resp.Actions[i] = string(a)
	}
	for i, it := range inv.Items {
		resp.Items[i] = LineItemResponse{
			ID:          it.ID.String(),
			Product:     optionalID(it.ProductID),
			Description: it.Description,
			Quantity:    money(it.Quantity),
			UnitPrice:   money(it.UnitPrice),
			TVARate:     money(it.TVARate),
			TotalHT:     money(it.TotalHT),
			TotalTVA:    money(it.TotalTVA),
			TotalTTC:    money(it.TotalTTC),
		}
	}
	return resp
}
