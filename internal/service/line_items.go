package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"backoffice/internal/billing"
	"backoffice/internal/repository"
)

// LineItemRequest is one priced line as submitted by the document forms.
// When Product is set, blank fields are seeded from the catalog entry.
type LineItemRequest struct {
	Product     *string          `json:"product"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity" swaggertype:"string" example:"2"`
	UnitPrice   *decimal.Decimal `json:"unit_price" swaggertype:"string" example:"1000"`
	TVARate     *decimal.Decimal `json:"tva_rate" swaggertype:"string" example:"18"`
}

type LineItemResponse struct {
	ID          string  `json:"id"`
	Product     *string `json:"product"`
	Description string  `json:"description"`
	Quantity    string  `json:"quantity"`
	UnitPrice   string  `json:"unit_price"`
	TVARate     string  `json:"tva_rate"`
	TotalHT     string  `json:"total_ht"`
	TotalTVA    string  `json:"total_tva"`
	TotalTTC    string  `json:"total_ttc"`
}

// resolvedLine is a line ready to be stored.
type resolvedLine struct {
	ProductID *uuid.UUID
	Item      billing.LineItem
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// resolveLines seeds catalog values into lines that reference a product and
// validates the result. Any missing product is a not_found error.
func resolveLines(ctx context.Context, products repository.ProductRepository, reqs []LineItemRequest) ([]resolvedLine, error) {
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

	found, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	catalog := make(map[uuid.UUID]int, len(found))
	for i, p := range found {
		catalog[p.ID] = i
	}

	lines := make([]resolvedLine, len(reqs))
	for i, r := range reqs {
		item := billing.LineItem{
			Description: strings.TrimSpace(r.Description),
			Quantity:    r.Quantity,
			UnitPrice:   decimal.Zero,
			TVARate:     billing.TVARateStandard,
		}
		if parsed[i] != nil {
			idx, ok := catalog[*parsed[i]]
			if !ok {
				return nil, billing.Errorf(billing.ErrNotFound, "line %d: product not found", i+1)
			}
			p := found[idx]
			if item.Description == "" {
				item.Description = p.Name
			}
			item.UnitPrice = p.UnitPrice
			item.TVARate = p.TVARate
		}
		if r.UnitPrice != nil {
			item.UnitPrice = *r.UnitPrice
		}
		if r.TVARate != nil {
			item.TVARate = *r.TVARate
		}
		lines[i] = resolvedLine{ProductID: parsed[i], Item: item}
	}

	items := make([]billing.LineItem, len(lines))
	for i, l := range lines {
		if !billing.IsAllowedTVARate(l.Item.TVARate) {
			return nil, billing.Errorf(billing.ErrInvalidLineItem, "line %d: tva rate must be 0 or 18", i+1)
		}
		items[i] = l.Item
	}
	if err := billing.ValidateItems(items); err != nil {
		return nil, err
	}
	return lines, nil
}

// DocumentListQuery carries the list filters shared by all document endpoints.
type DocumentListQuery struct {
	Status    string `form:"status"`
	Client    string `form:"client"`
	Search    string `form:"search"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Ordering  string `form:"ordering"`
}

func (q DocumentListQuery) filter() (repository.DocumentFilter, error) {
	f := repository.DocumentFilter{
		Status:   strings.TrimSpace(q.Status),
		Search:   strings.TrimSpace(q.Search),
		Ordering: strings.TrimSpace(q.Ordering),
	}
	if q.Client != "" {
		id, err := parseID(q.Client, "client")
		if err != nil {
			return f, err
		}
		f.ClientID = &id
	}
	var err error
	if q.StartDate != "" {
		if f.StartDate, err = parseOptionalDate(&q.StartDate, "start_date"); err != nil {
			return f, err
		}
	}
	if q.EndDate != "" {
		if f.EndDate, err = parseOptionalDate(&q.EndDate, "end_date"); err != nil {
			return f, err
		}
	}
	return f, nil
}

// TotalsPreviewResponse is the live calculation shown while a document is edited.
type TotalsPreviewResponse struct {
	Lines    []LineTotalsResponse `json:"lines"`
	TotalHT  string               `json:"total_ht"`
	TotalTVA string               `json:"total_tva"`
	TotalTTC string               `json:"total_ttc"`
}

type LineTotalsResponse struct {
	TotalHT  string `json:"total_ht"`
	TotalTVA string `json:"total_tva"`
	TotalTTC string `json:"total_ttc"`
}

// PreviewTotals runs the calculator over lines that are still being edited.
// It never fails: incomplete lines simply contribute what they can.
func PreviewTotals(reqs []LineItemRequest) TotalsPreviewResponse {
	items := make([]billing.LineItem, len(reqs))
	for i, r := range reqs {
		items[i] = billing.LineItem{Description: r.Description, Quantity: r.Quantity, TVARate: billing.TVARateStandard}
		if r.UnitPrice != nil {
			items[i].UnitPrice = *r.UnitPrice
		}
		if r.TVARate != nil {
			items[i].TVARate = *r.TVARate
		}
	}

	resp := TotalsPreviewResponse{Lines: make([]LineTotalsResponse, len(items))}
	for i, it := range items {
		lt := billing.ComputeLine(it)
		resp.Lines[i] = LineTotalsResponse{TotalHT: money(lt.TotalHT), TotalTVA: money(lt.TotalTVA), TotalTTC: money(lt.TotalTTC)}
	}
	t := billing.ComputeTotals(items)
	resp.TotalHT, resp.TotalTVA, resp.TotalTTC = money(t.TotalHT), money(t.TotalTVA), money(t.TotalTTC)
	return resp
}
