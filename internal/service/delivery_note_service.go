package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/pdf"
	"backoffice/internal/repository"
)

// --- DTOs ---

type DeliveryNoteItemRequest struct {
	Product     *string         `json:"product"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" swaggertype:"string" example:"10"`
	Observation string          `json:"observation" binding:"max=500"`
}

type DeliveryNoteRequest struct {
	Client        string                    `json:"client" binding:"required"`
	Date          string                    `json:"date" binding:"omitempty,datetime=2006-01-02"`
	PaymentMethod string                    `json:"payment_method"`
	DeliveredBy   string                    `json:"delivered_by" binding:"max=200"`
	Notes         string                    `json:"notes"`
	Items         []DeliveryNoteItemRequest `json:"items" binding:"dive"`
}

type DeliveryNoteItemResponse struct {
	ID          string  `json:"id"`
	Product     *string `json:"product"`
	Description string  `json:"description"`
	Quantity    string  `json:"quantity"`
	Observation string  `json:"observation"`
}

type DeliveryNoteResponse struct {
	ID                   string                     `json:"id"`
	Number               string                     `json:"number"`
	Client               string                     `json:"client"`
	ClientDetail         *ClientSummary             `json:"client_detail"`
	CreatedBy            string                     `json:"created_by"`
	CreatedByName        string                     `json:"created_by_name"`
	Date                 string                     `json:"date"`
	PaymentMethod        string                     `json:"payment_method"`
	PaymentMethodDisplay string                     `json:"payment_method_display"`
	DeliveredBy          string                     `json:"delivered_by"`
	Notes                string                     `json:"notes"`
	Items                []DeliveryNoteItemResponse `json:"items"`
	CreatedAt            string                     `json:"created_at"`
	UpdatedAt            string                     `json:"updated_at"`
}

// --- Interface ---

type DeliveryNoteService interface {
	ListDeliveryNotes(ctx context.Context, q DocumentListQuery, page, limit int) ([]DeliveryNoteResponse, int64, error)
	GetDeliveryNote(ctx context.Context, id string) (DeliveryNoteResponse, error)
	CreateDeliveryNote(ctx context.Context, actor auth.Principal, req DeliveryNoteRequest) (DeliveryNoteResponse, error)
	UpdateDeliveryNote(ctx context.Context, actor auth.Principal, id string, req DeliveryNoteRequest) (DeliveryNoteResponse, error)
	DeleteDeliveryNote(ctx context.Context, actor auth.Principal, id string) error
	RenderPDF(ctx context.Context, id string) ([]byte, string, error)
}

type deliveryNoteService struct {
	noteRepo    repository.DeliveryNoteRepository
	clientRepo  repository.ClientRepository
	productRepo repository.ProductRepository
	renderer    *pdf.Renderer
	infra       *Infra
}

func NewDeliveryNoteService(
	noteRepo repository.DeliveryNoteRepository,
	clientRepo repository.ClientRepository,
	productRepo repository.ProductRepository,
	renderer *pdf.Renderer,
	infra *Infra,
) DeliveryNoteService {
	return &deliveryNoteService{
		noteRepo:    noteRepo,
		clientRepo:  clientRepo,
		productRepo: productRepo,
		renderer:    renderer,
		infra:       infra,
	}
}

// --- Implementation ---

func (s *deliveryNoteService) ListDeliveryNotes(ctx context.Context, q DocumentListQuery, page, limit int) ([]DeliveryNoteResponse, int64, error) {
	filter, err := q.filter()
	if err != nil {
		return nil, 0, err
	}
	notes, total, err := s.noteRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch delivery notes: %w", err)
	}
	result := make([]DeliveryNoteResponse, 0, len(notes))
	for i := range notes {
		result = append(result, toDeliveryNoteResponse(&notes[i]))
	}
	return result, total, nil
}

func (s *deliveryNoteService) GetDeliveryNote(ctx context.Context, id string) (DeliveryNoteResponse, error) {
	note, err := s.load(ctx, id)
	if err != nil {
		return DeliveryNoteResponse{}, err
	}
	return toDeliveryNoteResponse(note), nil
}

func (s *deliveryNoteService) load(ctx context.Context, id string) (*model.DeliveryNote, error) {
	noteID, err := parseID(id, "delivery note")
	if err != nil {
		return nil, err
	}
	note, err := s.noteRepo.FindByID(ctx, noteID)
	if err != nil {
		return nil, lookupErr(err, "delivery note")
	}
	return note, nil
}

// build validates req into an unsaved delivery note.
func (s *deliveryNoteService) build(ctx context.Context, req DeliveryNoteRequest) (*model.DeliveryNote, error) {
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
	method := billing.PaymentMethod(strings.TrimSpace(req.PaymentMethod))
	if !method.Valid() {
		return nil, billing.Errorf(billing.ErrValidation, "unknown payment method %q", req.PaymentMethod)
	}
	items, err := s.items(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	return &model.DeliveryNote{
		ClientID:      clientID,
		Date:          date,
		PaymentMethod: method,
		DeliveredBy:   strings.TrimSpace(req.DeliveredBy),
		Notes:         req.Notes,
		Items:         items,
	}, nil
}

// items requires at least one line, each with a description (taken from the
// product when left blank) and a positive quantity.
func (s *deliveryNoteService) items(ctx context.Context, reqs []DeliveryNoteItemRequest) ([]model.DeliveryNoteItem, error) {
	if len(reqs) == 0 {
		return nil, billing.ErrEmptyItems
	}
	ids := make([]uuid.UUID, 0, len(reqs))
	parsed := make([]*uuid.UUID, len(reqs))
	for i, r := range reqs {
		if r.Product == nil || strings.TrimSpace(*r.Product) == "" {
			continue
		}
		id, err := parseID(*r.Product, "product")
		if err != nil {
			return nil, err
		}
		parsed[i] = &id
		ids = append(ids, id)
	}
	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	names := make(map[uuid.UUID]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	items := make([]model.DeliveryNoteItem, len(reqs))
	for i, r := range reqs {
		desc := strings.TrimSpace(r.Description)
		if parsed[i] != nil {
			name, ok := names[*parsed[i]]
			if !ok {
				return nil, billing.Errorf(billing.ErrNotFound, "line %d: product not found", i+1)
			}
			if desc == "" {
				desc = name
			}
		}
		switch {
		case desc == "":
			return nil, billing.Errorf(billing.ErrInvalidLineItem, "line %d: description is required", i+1)
		case utf8.RuneCountInString(desc) > billing.MaxDescriptionLength:
			return nil, billing.Errorf(billing.ErrInvalidLineItem, "line %d: description must be at most %d characters", i+1, billing.MaxDescriptionLength)
		case !r.Quantity.IsPositive():
			return nil, billing.Errorf(billing.ErrInvalidLineItem, "line %d: quantity must be greater than 0", i+1)
		case !billing.HasCentPrecision(r.Quantity):
			return nil, billing.Errorf(billing.ErrInvalidLineItem, "line %d: quantity must have at most 2 decimals", i+1)
		}
		items[i] = model.DeliveryNoteItem{
			ProductID:   parsed[i],
			Description: desc,
			Quantity:    r.Quantity,
			Observation: strings.TrimSpace(r.Observation),
		}
	}
	return items, nil
}

func (s *deliveryNoteService) CreateDeliveryNote(ctx context.Context, actor auth.Principal, req DeliveryNoteRequest) (DeliveryNoteResponse, error) {
	note, err := s.build(ctx, req)
	if err != nil {
		return DeliveryNoteResponse{}, err
	}
	note.CreatedByID = actor.UserID

	err = s.infra.createNumbered(ctx, func(txCtx context.Context) error {
		number, err := s.noteRepo.NextNumber(txCtx, s.infra.numberPrefix(PrefixDeliveryNote))
		if err != nil {
			return fmt.Errorf("failed to generate delivery note number: %w", err)
		}
		note.Number = number
		if err := s.noteRepo.Create(txCtx, note); err != nil {
			return fmt.Errorf("failed to create delivery note: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionCreateDeliveryNote, note.ID.String(), note.Number, nil)
	})
	if err != nil {
		return DeliveryNoteResponse{}, err
	}

	s.infra.publish("delivery_note.created", map[string]string{"id": note.ID.String(), "number": note.Number})
	return s.GetDeliveryNote(ctx, note.ID.String())
}

func (s *deliveryNoteService) UpdateDeliveryNote(ctx context.Context, actor auth.Principal, id string, req DeliveryNoteRequest) (DeliveryNoteResponse, error) {
	noteID, err := parseID(id, "delivery note")
	if err != nil {
		return DeliveryNoteResponse{}, err
	}
	update, err := s.build(ctx, req)
	if err != nil {
		return DeliveryNoteResponse{}, err
	}

	err = s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		note, err := s.noteRepo.FindByID(txCtx, noteID)
		if err != nil {
			return lookupErr(err, "delivery note")
		}
		note.Client, note.CreatedBy = nil, nil
		note.ClientID = update.ClientID
		note.Date = update.Date
		note.PaymentMethod = update.PaymentMethod
		note.DeliveredBy = update.DeliveredBy
		note.Notes = update.Notes
		note.Items = update.Items

		if err := s.noteRepo.UpdateHeader(txCtx, note); err != nil {
			return fmt.Errorf("failed to update delivery note: %w", err)
		}
		if err := s.noteRepo.ReplaceItems(txCtx, note.ID, note.Items); err != nil {
			return fmt.Errorf("failed to replace delivery note items: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionUpdateDeliveryNote, note.ID.String(), note.Number, nil)
	})
	if err != nil {
		return DeliveryNoteResponse{}, err
	}

	s.infra.publish("delivery_note.updated", map[string]string{"id": noteID.String()})
	return s.GetDeliveryNote(ctx, noteID.String())
}

func (s *deliveryNoteService) DeleteDeliveryNote(ctx context.Context, actor auth.Principal, id string) error {
	noteID, err := parseID(id, "delivery note")
	if err != nil {
		return err
	}
	err = s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		note, err := s.noteRepo.FindByID(txCtx, noteID)
		if err != nil {
			return lookupErr(err, "delivery note")
		}
		if err := s.noteRepo.Delete(txCtx, note.ID); err != nil {
			return fmt.Errorf("failed to delete delivery note: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionDeleteDeliveryNote, note.ID.String(), note.Number, nil)
	})
	if err != nil {
		return err
	}
	s.infra.publish("delivery_note.deleted", map[string]string{"id": noteID.String()})
	return nil
}

func (s *deliveryNoteService) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	note, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	out, err := s.renderer.DeliveryNote(note)
	if err != nil {
		return nil, "", err
	}
	return out, pdf.Filename(note.Number), nil
}

// --- Mapping ---

func toDeliveryNoteResponse(n *model.DeliveryNote) DeliveryNoteResponse {
	resp := DeliveryNoteResponse{
		ID:                   n.ID.String(),
		Number:               n.Number,
		Client:               n.ClientID.String(),
		ClientDetail:         toClientSummary(n.Client),
		CreatedBy:            n.CreatedByID.String(),
		CreatedByName:        creatorName(n.CreatedBy),
		Date:                 formatDate(n.Date),
		PaymentMethod:        string(n.PaymentMethod),
		PaymentMethodDisplay: n.PaymentMethod.Label(),
		DeliveredBy:          n.DeliveredBy,
		Notes:                n.Notes,
		Items:                make([]DeliveryNoteItemResponse, len(n.Items)),
		CreatedAt:            formatTimestamp(n.CreatedAt),
		UpdatedAt:            formatTimestamp(n.UpdatedAt),
	}
	for i, it := range n.Items {
		resp.Items[i] = DeliveryNoteItemResponse{
			ID:          it.ID.String(),
			Product:     optionalID(it.ProductID),
			Description: it.Description,
			Quantity:    money(it.Quantity),
			Observation: it.Observation,
		}
	}
	return resp
}
