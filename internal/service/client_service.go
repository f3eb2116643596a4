package service

import (
	"context"
	"fmt"
	"strings"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/repository"
)

// --- DTOs ---

type ClientRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Phone   string `json:"phone" binding:"max=20"`
	Email   string `json:"email" binding:"omitempty,email,max=255"`
	Address string `json:"address"`
	NINEA   string `json:"ninea" binding:"max=50"`
}

type ClientResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	NINEA     string `json:"ninea"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// --- Interface ---

type ClientService interface {
	ListClients(ctx context.Context, search string, page, limit int) ([]ClientResponse, int64, error)
	GetClient(ctx context.Context, id string) (ClientResponse, error)
	CreateClient(ctx context.Context, actor auth.Principal, req ClientRequest) (ClientResponse, error)
	UpdateClient(ctx context.Context, actor auth.Principal, id string, req ClientRequest) (ClientResponse, error)
	DeleteClient(ctx context.Context, actor auth.Principal, id string) error
}

type clientService struct {
	clientRepo repository.ClientRepository
	infra      *Infra
}

func NewClientService(clientRepo repository.ClientRepository, infra *Infra) ClientService {
	return &clientService{clientRepo: clientRepo, infra: infra}
}

// --- Implementation ---

func (s *clientService) ListClients(ctx context.Context, search string, page, limit int) ([]ClientResponse, int64, error) {
	clients, total, err := s.clientRepo.List(ctx, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch clients: %w", err)
	}
	result := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		result = append(result, toClientResponse(&clients[i]))
	}
	return result, total, nil
}

func (s *clientService) GetClient(ctx context.Context, id string) (ClientResponse, error) {
	clientID, err := parseID(id, "client")
	if err != nil {
		return ClientResponse{}, err
	}
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return ClientResponse{}, lookupErr(err, "client")
	}
	return toClientResponse(client), nil
}

func (s *clientService) CreateClient(ctx context.Context, actor auth.Principal, req ClientRequest) (ClientResponse, error) {
	client := model.Client{}
	if err := applyClientRequest(&client, req); err != nil {
		return ClientResponse{}, err
	}

	err := s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.clientRepo.Create(txCtx, &client); err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionCreateClient, client.ID.String(), client.Name, nil)
	})
	if err != nil {
		return ClientResponse{}, err
	}
	return toClientResponse(&client), nil
}

func (s *clientService) UpdateClient(ctx context.Context, actor auth.Principal, id string, req ClientRequest) (ClientResponse, error) {
	clientID, err := parseID(id, "client")
	if err != nil {
		return ClientResponse{}, err
	}

	var client *model.Client
	err = s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		client, err = s.clientRepo.FindByID(txCtx, clientID)
		if err != nil {
			return lookupErr(err, "client")
		}
		if err := applyClientRequest(client, req); err != nil {
			return err
		}
		if err := s.clientRepo.Update(txCtx, client); err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionUpdateClient, client.ID.String(), client.Name, nil)
	})
	if err != nil {
		return ClientResponse{}, err
	}
	return toClientResponse(client), nil
}

// DeleteClient refuses to remove a client that documents still refer to.
func (s *clientService) DeleteClient(ctx context.Context, actor auth.Principal, id string) error {
	clientID, err := parseID(id, "client")
	if err != nil {
		return err
	}

	return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		client, err := s.clientRepo.FindByID(txCtx, clientID)
		if err != nil {
			return lookupErr(err, "client")
		}
		n, err := s.clientRepo.CountDocuments(txCtx, clientID)
		if err != nil {
			return fmt.Errorf("failed to count client documents: %w", err)
		}
		if n > 0 {
			return billing.Errorf(billing.ErrConflict, "client %s is referenced by %d document(s)", client.Name, n)
		}
		if err := s.clientRepo.Delete(txCtx, clientID); err != nil {
			return fmt.Errorf("failed to delete client: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionDeleteClient, client.ID.String(), client.Name, nil)
	})
}

// --- Mapping ---

func applyClientRequest(c *model.Client, req ClientRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return billing.Errorf(billing.ErrValidation, "name is required")
	}
	c.Name = name
	c.Phone = strings.TrimSpace(req.Phone)
	c.Email = strings.TrimSpace(req.Email)
	c.Address = strings.TrimSpace(req.Address)
	c.NINEA = strings.TrimSpace(req.NINEA)
	return nil
}

func toClientResponse(c *model.Client) ClientResponse {
	return ClientResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Phone:     c.Phone,
		Email:     c.Email,
		Address:   c.Address,
		NINEA:     c.NINEA,
		CreatedAt: formatTimestamp(c.CreatedAt),
		UpdatedAt: formatTimestamp(c.UpdatedAt),
	}
}
