package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/repository"
)

// Document number prefixes. A number reads <prefix>-<year>-<seq>.
const (
	PrefixInvoice      = "FAC"
	PrefixProforma     = "PRO"
	PrefixDeliveryNote = "BL"
)

// numberingAttempts bounds how often a create is retried when another request
// took the same number first.
const numberingAttempts = 3

func (in *Infra) numberPrefix(kind string) string {
	return fmt.Sprintf("%s-%d-", kind, in.today().Year())
}

// createNumbered runs fn in a fresh transaction and retries it when the
// generated number collides with a concurrent insert. Inside an enclosing
// transaction no retry is possible and the collision surfaces as a conflict.
func (in *Infra) createNumbered(ctx context.Context, fn func(txCtx context.Context) error) error {
	var err error
	for attempt := 0; attempt < numberingAttempts; attempt++ {
		err = in.Tx.RunInTx(ctx, fn)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return billing.Errorf(billing.ErrConflict, "could not allocate a document number, retry")
}

// ClientSummary is the client block embedded in document responses.
type ClientSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	NINEA   string `json:"ninea"`
}

func toClientSummary(c *model.Client) *ClientSummary {
	if c == nil {
		return nil
	}
	return &ClientSummary{
		ID:      c.ID.String(),
		Name:    c.Name,
		Phone:   c.Phone,
		Email:   c.Email,
		Address: c.Address,
		NINEA:   c.NINEA,
	}
}

func creatorName(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.FullName()
}

// requireClient resolves the client a document is issued to.
func requireClient(ctx context.Context, clients repository.ClientRepository, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, billing.ErrClientRequired
	}
	id, err := parseID(raw, "client")
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := clients.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, billing.Errorf(billing.ErrValidation, "client does not exist")
		}
		return uuid.Nil, fmt.Errorf("failed to load client: %w", err)
	}
	return id, nil
}
