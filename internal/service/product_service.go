package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/repository"
)

// --- DTOs ---

type ProductRequest struct {
	Name        string           `json:"name" binding:"required,max=200"`
	Description string           `json:"description"`
	UnitPrice   decimal.Decimal  `json:"unit_price" binding:"dgte0" swaggertype:"string" example:"1000"`
	TVARate     *decimal.Decimal `json:"tva_rate" binding:"omitempty,tvarate" swaggertype:"string" example:"18"`
}

type ProductResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	TVARate     string `json:"tva_rate"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// --- Interface ---

type ProductService interface {
	ListProducts(ctx context.Context, search string, page, limit int) ([]ProductResponse, int64, error)
	GetProduct(ctx context.Context, id string) (ProductResponse, error)
	CreateProduct(ctx context.Context, actor auth.Principal, req ProductRequest) (ProductResponse, error)
	UpdateProduct(ctx context.Context, actor auth.Principal, id string, req ProductRequest) (ProductResponse, error)
	DeleteProduct(ctx context.Context, actor auth.Principal, id string) error
}

type productService struct {
	productRepo repository.ProductRepository
	infra       *Infra
}

func NewProductService(productRepo repository.ProductRepository, infra *Infra) ProductService {
	return &productService{productRepo: productRepo, infra: infra}
}

// --- Implementation ---

func (s *productService) ListProducts(ctx context.Context, search string, page, limit int) ([]ProductResponse, int64, error) {
	products, total, err := s.productRepo.List(ctx, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}
	result := make([]ProductResponse, 0, len(products))
	for i := range products {
		result = append(result, toProductResponse(&products[i]))
	}
	return result, total, nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (ProductResponse, error) {
	productID, err := parseID(id, "product")
	if err != nil {
		return ProductResponse{}, err
	}
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return ProductResponse{}, lookupErr(err, "product")
	}
	return toProductResponse(product), nil
}

func (s *productService) CreateProduct(ctx context.Context, actor auth.Principal, req ProductRequest) (ProductResponse, error) {
	product := model.Product{}
	if err := applyProductRequest(&product, req); err != nil {
		return ProductResponse{}, err
	}

	err := s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, &product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionCreateProduct, product.ID.String(), product.Name, nil)
	})
	if err != nil {
		return ProductResponse{}, err
	}
	return toProductResponse(&product), nil
}

// UpdateProduct changes the catalog entry only. Lines that already copied the
// old price or rate keep them.
func (s *productService) UpdateProduct(ctx context.Context, actor auth.Principal, id string, req ProductRequest) (ProductResponse, error) {
	productID, err := parseID(id, "product")
	if err != nil {
		return ProductResponse{}, err
	}

	var product *model.Product
	err = s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		product, err = s.productRepo.FindByID(txCtx, productID)
		if err != nil {
			return lookupErr(err, "product")
		}
		if err := applyProductRequest(product, req); err != nil {
			return err
		}
		if err := s.productRepo.Update(txCtx, product); err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionUpdateProduct, product.ID.String(), product.Name, nil)
	})
	if err != nil {
		return ProductResponse{}, err
	}
	return toProductResponse(product), nil
}

func (s *productService) DeleteProduct(ctx context.Context, actor auth.Principal, id string) error {
	productID, err := parseID(id, "product")
	if err != nil {
		return err
	}

	return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.productRepo.FindByID(txCtx, productID)
		if err != nil {
			return lookupErr(err, "product")
		}
		n, err := s.productRepo.CountReferences(txCtx, productID)
		if err != nil {
			return fmt.Errorf("failed to count product references: %w", err)
		}
		if n > 0 {
			return billing.Errorf(billing.ErrConflict, "product %s is used on %d document line(s)", product.Name, n)
		}
		if err := s.productRepo.Delete(txCtx, productID); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionDeleteProduct, product.ID.String(), product.Name, nil)
	})
}

// --- Mapping ---

// applyProductRequest copies req onto p. A missing rate means the standard one.
func applyProductRequest(p *model.Product, req ProductRequest) error {
	name := strings.TrimSpace(req.Name)
	rate := billing.TVARateStandard
	if req.TVARate != nil {
		rate = *req.TVARate
	}
	switch {
	case name == "":
		return billing.Errorf(billing.ErrValidation, "name is required")
	case req.UnitPrice.IsNegative():
		return billing.Errorf(billing.ErrValidation, "unit_price must not be negative")
	case !billing.HasCentPrecision(req.UnitPrice):
		return billing.Errorf(billing.ErrValidation, "unit_price must have at most 2 decimals")
	case !billing.IsAllowedTVARate(rate):
		return billing.Errorf(billing.ErrValidation, "tva_rate must be 0 or 18")
	}
	p.Name = name
	p.Description = strings.TrimSpace(req.Description)
	p.UnitPrice = req.UnitPrice
	p.TVARate = rate
	return nil
}

func toProductResponse(p *model.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		UnitPrice:   money(p.UnitPrice),
		TVARate:     money(p.TVARate),
		CreatedAt:   formatTimestamp(p.CreatedAt),
		UpdatedAt:   formatTimestamp(p.UpdatedAt),
	}
}
