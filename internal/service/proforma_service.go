package service

import (
	"context"
	"fmt"
	"strings"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/pdf"
	"backoffice/internal/repository"
)

// --- DTOs ---

type ProformaRequest struct {
	Client       string            `json:"client" binding:"required"`
	Date         string            `json:"date" binding:"omitempty,datetime=2006-01-02"`
	ValidityDate *string           `json:"validity_date" binding:"omitempty,datetime=2006-01-02"`
	Notes        string            `json:"notes"`
	Items        []LineItemRequest `json:"items" binding:"dive"`
}

type ProformaResponse struct {
	ID               string             `json:"id"`
	Number           string             `json:"number"`
	Client           string             `json:"client"`
	ClientDetail     *ClientSummary     `json:"client_detail"`
	CreatedBy        string             `json:"created_by"`
	CreatedByName    string             `json:"created_by_name"`
	Status           string             `json:"status"`
	StatusDisplay    string             `json:"status_display"`
	StatusColor      string             `json:"status_color"`
	Actions          []string           `json:"actions"`
	Date             string             `json:"date"`
	ValidityDate     *string            `json:"validity_date"`
	Notes            string             `json:"notes"`
	TotalHT          string             `json:"total_ht"`
	TotalTVA         string             `json:"total_tva"`
	TotalTTC         string             `json:"total_ttc"`
	ConvertedInvoice *string            `json:"converted_invoice"`
	Items            []LineItemResponse `json:"items"`
	CreatedAt        string             `json:"created_at"`
	UpdatedAt        string             `json:"updated_at"`
}

// ConversionResult answers a successful proforma conversion.
type ConversionResult struct {
	Message       string `json:"message"`
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
}

type ProformaStats struct {
	TotalProformasMonth int64  `json:"total_proformas_month"`
	TotalAmountMonth    string `json:"total_amount_month"`
	Accepted            int64  `json:"accepted"`
	Pending             int64  `json:"pending"`
	Converted           int64  `json:"converted"`
}

// --- Interface ---

type ProformaService interface {
	ListProformas(ctx context.Context, q DocumentListQuery, page, limit int) ([]ProformaResponse, int64, error)
	GetProforma(ctx context.Context, id string) (ProformaResponse, error)
	CreateProforma(ctx context.Context, actor auth.Principal, req ProformaRequest) (ProformaResponse, error)
	UpdateProforma(ctx context.Context, actor auth.Principal, id string, req ProformaRequest) (ProformaResponse, error)
	DeleteProforma(ctx context.Context, actor auth.Principal, id string) error
	Send(ctx context.Context, actor auth.Principal, id string) (ProformaResponse, error)
	Accept(ctx context.Context, actor auth.Principal, id string) (ProformaResponse, error)
	Reject(ctx context.Context, actor auth.Principal, id string) (ProformaResponse, error)
	ConvertToInvoice(ctx context.Context, actor auth.Principal, id string) (ConversionResult, error)
	Stats(ctx context.Context) (ProformaStats, error)
	RenderPDF(ctx context.Context, id string) ([]byte, string, error)
}

type proformaService struct {
	proformaRepo repository.ProformaRepository
	invoiceRepo  repository.InvoiceRepository
	clientRepo   repository.ClientRepository
	productRepo  repository.ProductRepository
	renderer     *pdf.Renderer
	infra        *Infra
}

func NewProformaService(
	proformaRepo repository.ProformaRepository,
	invoiceRepo repository.InvoiceRepository,
	clientRepo repository.ClientRepository,
	productRepo repository.ProductRepository,
	renderer *pdf.Renderer,
	infra *Infra,
) ProformaService {
	return &proformaService{
		proformaRepo: proformaRepo,
		invoiceRepo:  invoiceRepo,
		clientRepo:   clientRepo,
		productRepo:  productRepo,
		renderer:     renderer,
		infra:        infra,
	}
}

var proformaAuditActions = map[billing.ProformaAction]string{
	billing.ActionSend:    model.ActionSendProforma,
	billing.ActionAccept:  model.ActionAcceptProforma,
	billing.ActionReject:  model.ActionRejectProforma,
	billing.ActionConvert: model.ActionConvertProforma,
}

// --- Implementation ---

func (s *proformaService) ListProformas(ctx context.Context, q DocumentListQuery, page, limit int) ([]ProformaResponse, int64, error) {
	filter, err := q.filter()
	if err != nil {
		return nil, 0, err
	}
	proformas, total, err := s.proformaRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch proformas: %w", err)
	}

	result := make([]ProformaResponse, 0, len(proformas))
	for i := range proformas {
		result = append(result, toProformaResponse(&proformas[i]))
	}
	return result, total, nil
}

func (s *proformaService) GetProforma(ctx context.Context, id string) (ProformaResponse, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return ProformaResponse{}, err
	}
	return toProformaResponse(p), nil
}

func (s *proformaService) load(ctx context.Context, id string) (*model.Proforma, error) {
	proformaID, err := parseID(id, "proforma")
	if err != nil {
		return nil, err
	}
	p, err := s.proformaRepo.FindByID(ctx, proformaID)
	if err != nil {
		return nil, lookupErr(err, "proforma")
	}
	return p, nil
}

func (s *proformaService) header(ctx context.Context, req ProformaRequest) (*model.Proforma, error) {
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
	validity, err := parseOptionalDate(req.ValidityDate, "validity_date")
	if err != nil {
		return nil, err
	}
	if validity != nil && validity.Before(date) {
		return nil, billing.Errorf(billing.ErrValidation, "validity_date must not be before date")
	}
	return &model.Proforma{ClientID: clientID, Date: date, ValidityDate: validity, Notes: req.Notes}, nil
}

func toProformaItems(lines []resolvedLine) []model.ProformaItem {
	items := make([]model.ProformaItem, len(lines))
	for i, l := range lines {
		items[i] = model.ProformaItem{
			ProductID:   l.ProductID,
			Description: l.Item.Description,
			Quantity:    l.Item.Quantity,
			UnitPrice:   l.Item.UnitPrice,
			TVARate:     l.Item.TVARate,
		}
	}
	return items
}

func (s *proformaService) CreateProforma(ctx context.Context, actor auth.Principal, req ProformaRequest) (ProformaResponse, error) {
	p, err := s.header(ctx, req)
	if err != nil {
		return ProformaResponse{}, err
	}
	lines, err := resolveLines(ctx, s.productRepo, req.Items)
	if err != nil {
		return ProformaResponse{}, err
	}
	p.CreatedByID = actor.UserID
	p.Status = billing.ProformaDraft
	p.Items = toProformaItems(lines)
	p.ApplyTotals()

	err = s.infra.createNumbered(ctx, func(txCtx context.Context) error {
		number, err := s.proformaRepo.NextNumber(txCtx, s.infra.numberPrefix(PrefixProforma))
		if err != nil {
			return fmt.Errorf("failed to generate proforma number: %w", err)
		}
		p.Number = number
		if err := s.proformaRepo.Create(txCtx, p); err != nil {
			return fmt.Errorf("failed to create proforma: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionCreateProforma, p.ID.String(), p.Number, map[string]string{
			"total_ttc": money(p.TotalTTC),
		})
	})
	if err != nil {
		return ProformaResponse{}, err
	}

	s.infra.publish("proforma.created", map[string]string{"id": p.ID.String(), "number": p.Number})
	return s.GetProforma(ctx, p.ID.String())
}

func (s *proformaService) UpdateProforma(ctx context.Context, actor auth.Principal, id string, req ProformaRequest) (ProformaResponse, error) {
	proformaID, err := parseID(id, "proforma")
	if err != nil {
		return ProformaResponse{}, err
	}
	header, err := s.header(ctx, req)
	if err != nil {
		return ProformaResponse{}, err
	}
	lines, err := resolveLines(ctx, s.productRepo, req.Items)
	if err != nil {
		return ProformaResponse{}, err
	}

	err = s.infra.withLock(ctx, "proforma:"+proformaID.String(), func() error {
		return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
			p, err := s.proformaRepo.FindByIDForUpdate(txCtx, proformaID)
			if err != nil {
				return lookupErr(err, "proforma")
			}
			if !p.Status.CanEdit() {
				return billing.Errorf(billing.ErrNotEditable, "proforma %s is %s and can no longer be modified", p.Number, p.Status)
			}

			p.ClientID = header.ClientID
			p.Date = header.Date
			p.ValidityDate = header.ValidityDate
			p.Notes = header.Notes
			p.Items = toProformaItems(lines)
			p.ApplyTotals()

			if err := s.proformaRepo.UpdateHeader(txCtx, p); err != nil {
				return fmt.Errorf("failed to update proforma: %w", err)
			}
			if err := s.proformaRepo.ReplaceItems(txCtx, p.ID, p.Items); err != nil {
				return fmt.Errorf("failed to replace proforma items: %w", err)
			}
			return s.infra.audit(txCtx, actor, model.ActionUpdateProforma, p.ID.String(), p.Number, map[string]string{
				"total_ttc": money(p.TotalTTC),
			})
		})
	})
	if err != nil {
		return ProformaResponse{}, err
	}

	s.infra.publish("proforma.updated", map[string]string{"id": proformaID.String()})
	return s.GetProforma(ctx, proformaID.String())
}

func (s *proformaService) DeleteProforma(ctx context.Context, actor auth.Principal, id string) error {
	proformaID, err := parseID(id, "proforma")
	if err != nil {
		return err
	}

	err = s.infra.withLock(ctx, "proforma:"+proformaID.String(), func() error {
		return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
			p, err := s.proformaRepo.FindByIDForUpdate(txCtx, proformaID)
			if err != nil {
				return lookupErr(err, "proforma")
			}
			if !p.Status.CanEdit() {
				return billing.Errorf(billing.ErrNotEditable, "proforma %s is %s and cannot be deleted", p.Number, p.Status)
			}
			if err := s.proformaRepo.Delete(txCtx, p.ID); err != nil {
				return fmt.Errorf("failed to delete proforma: %w", err)
			}
			return s.infra.audit(txCtx, actor, model.ActionDeleteProforma, p.ID.String(), p.Number, nil)
		})
	})
	if err != nil {
		return err
	}

	s.infra.publish("proforma.deleted", map[string]string{"id": proformaID.String()})
	return nil
}

func (s *proformaService) Send(ctx context.Context, actor auth.Principal, id string) (ProformaResponse, error) {
	return s.apply(ctx, actor, id, billing.ActionSend)
}

func (s *proformaService) Accept(ctx context.Context, actor auth.Principal, id string) (ProformaResponse, error) {
	return s.apply(ctx, actor, id, billing.ActionAccept)
}

func (s *proformaService) Reject(ctx context.Context, actor auth.Principal, id string) (ProformaResponse, error) {
	return s.apply(ctx, actor, id, billing.ActionReject)
}

func (s *proformaService) apply(ctx context.Context, actor auth.Principal, id string, action billing.ProformaAction) (ProformaResponse, error) {
	proformaID, err := parseID(id, "proforma")
	if err != nil {
		return ProformaResponse{}, err
	}

	var from, to billing.ProformaStatus
	err = s.infra.withLock(ctx, "proforma:"+proformaID.String(), func() error {
		return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
			p, err := s.proformaRepo.FindByIDForUpdate(txCtx, proformaID)
			if err != nil {
				return lookupErr(err, "proforma")
			}

			from = p.Status
			if action == billing.ActionSend {
				to, err = billing.SendProforma(p.Status, p.LineItems())
			} else {
				to, err = billing.NextProformaStatus(p.Status, action)
			}
			if err != nil {
				return err
			}

			ok, err := s.proformaRepo.UpdateStatus(txCtx, p.ID, from, to)
			if err != nil {
				return fmt.Errorf("failed to update proforma status: %w", err)
			}
			if !ok {
				return billing.Errorf(billing.ErrInvalidTransition, "proforma %s changed status concurrently", p.Number)
			}
			return s.infra.audit(txCtx, actor, proformaAuditActions[action], p.ID.String(), p.Number, map[string]string{
				"from": string(from),
				"to":   string(to),
			})
		})
	})
	s.infra.transition("proforma", string(action), err)
	if err != nil {
		return ProformaResponse{}, err
	}

	s.infra.publish("proforma."+string(to), map[string]string{"id": proformaID.String(), "from": string(from), "to": string(to)})
	return s.GetProforma(ctx, proformaID.String())
}

// ConvertToInvoice turns the proforma into a new draft invoice. Invoice
// creation and the proforma status change commit together; the proforma row
// stays locked meanwhile so a concurrent conversion sees it converted.
func (s *proformaService) ConvertToInvoice(ctx context.Context, actor auth.Principal, id string) (ConversionResult, error) {
	proformaID, err := parseID(id, "proforma")
	if err != nil {
		return ConversionResult{}, err
	}

	var result ConversionResult
	err = s.infra.withLock(ctx, "proforma:"+proformaID.String(), func() error {
		return s.infra.createNumbered(ctx, func(txCtx context.Context) error {
			p, err := s.proformaRepo.FindByIDForUpdate(txCtx, proformaID)
			if err != nil {
				return lookupErr(err, "proforma")
			}
			conv, err := billing.PlanConversion(p.Status, p.LineItems())
			if err != nil {
				return err
			}

			source := p.ID
			inv := &model.Invoice{
				ClientID:         p.ClientID,
				CreatedByID:      actor.UserID,
				Status:           conv.InvoiceStatus,
				Date:             s.infra.today(),
				Notes:            conversionNotes(p),
				SourceProformaID: &source,
				Items:            make([]model.InvoiceItem, len(p.Items)),
			}
			for i, it := range p.Items {
				inv.Items[i] = model.InvoiceItem{
					ProductID:   it.ProductID,
					Description: it.Description,
					Quantity:    it.Quantity,
					UnitPrice:   it.UnitPrice,
					TVARate:     it.TVARate,
				}
			}
			inv.ApplyTotals()

			if err := insertInvoice(txCtx, s.infra, s.invoiceRepo, actor, inv); err != nil {
				return err
			}

			ok, err := s.proformaRepo.MarkConverted(txCtx, p.ID, p.Status, inv.ID)
			if err != nil {
				return fmt.Errorf("failed to mark proforma converted: %w", err)
			}
			if !ok {
				return billing.ErrAlreadyConverted
			}
			if err := s.infra.audit(txCtx, actor, model.ActionConvertProforma, p.ID.String(), p.Number, map[string]string{
				"invoice_id":     inv.ID.String(),
				"invoice_number": inv.Number,
			}); err != nil {
				return err
			}

			result = ConversionResult{
				Message:       "Proforma convertie en facture",
				InvoiceID:     inv.ID.String(),
				InvoiceNumber: inv.Number,
			}
			return nil
		})
	})
	s.infra.transition("proforma", string(billing.ActionConvert), err)
	if err != nil {
		return ConversionResult{}, err
	}

	s.infra.publish("proforma.converted", map[string]string{"id": proformaID.String(), "invoice_id": result.InvoiceID})
	s.infra.publish("invoice.created", map[string]string{"id": result.InvoiceID, "number": result.InvoiceNumber})
	return result, nil
}

func conversionNotes(p *model.Proforma) string {
	notes := "Convertie depuis proforma " + p.Number
	if strings.TrimSpace(p.Notes) != "" {
		notes += "\n" + p.Notes
	}
	return notes
}

func (s *proformaService) Stats(ctx context.Context) (ProformaStats, error) {
	from, to := s.infra.currentMonth()
	stats, err := s.proformaRepo.Stats(ctx, from, to)
	if err != nil {
		return ProformaStats{}, fmt.Errorf("failed to compute proforma stats: %w", err)
	}
	return ProformaStats{
		TotalProformasMonth: stats.Count,
		TotalAmountMonth:    money(stats.Amount),
		Accepted:            stats.Accepted,
		Pending:             stats.Pending,
		Converted:           stats.Converted,
	}, nil
}

func (s *proformaService) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	out, err := s.renderer.Proforma(p)
	if err != nil {
		return nil, "", err
	}
	return out, pdf.Filename(p.Number), nil
}

// --- Mapping ---

func toProformaResponse(p *model.Proforma) ProformaResponse {
	actions := billing.ProformaActions(p.Status)
	resp := ProformaResponse{
		ID:               p.ID.String(),
		Number:           p.Number,
		Client:           p.ClientID.String(),
		ClientDetail:     toClientSummary(p.Client),
		CreatedBy:        p.CreatedByID.String(),
		CreatedByName:    creatorName(p.CreatedBy),
		Status:           string(p.Status),
		StatusDisplay:    p.Status.Label(),
		StatusColor:      p.Status.Color(),
		Actions:          make([]string, len(actions)),
		Date:             formatDate(p.Date),
		ValidityDate:     formatOptionalDate(p.ValidityDate),
		Notes:            p.Notes,
		TotalHT:          money(p.TotalHT),
		TotalTVA:         money(p.TotalTVA),
		TotalTTC:         money(p.TotalTTC),
		ConvertedInvoice: optionalID(p.ConvertedInvoiceID),
		Items:            make([]LineItemResponse, len(p.Items)),
		CreatedAt:        formatTimestamp(p.CreatedAt),
		UpdatedAt:        formatTimestamp(p.UpdatedAt),
	}
	for i, a := range actions {
		resp.Actions[i] = string(a)
	}
	for i, it := range p.Items {
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
