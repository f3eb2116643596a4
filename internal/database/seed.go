package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"backoffice/internal/billing"
	"backoffice/internal/model"
)

// DefaultPermissions is the permission catalog seeded at startup.
var DefaultPermissions = []model.Permission{
	{Code: "dashboard.read", Name: "Voir le tableau de bord", Group: "dashboard"},
	{Code: "clients.read", Name: "Voir les clients", Group: "clients"},
	{Code: "clients.write", Name: "Gérer les clients", Group: "clients"},
	{Code: "products.read", Name: "Voir les produits", Group: "products"},
	{Code: "products.write", Name: "Gérer les produits", Group: "products"},
	{Code: "invoices.read", Name: "Voir les factures", Group: "invoices"},
	{Code: "invoices.write", Name: "Gérer les factures", Group: "invoices"},
	{Code: "proformas.read", Name: "Voir les proformas", Group: "proformas"},
	{Code: "proformas.write", Name: "Gérer les proformas", Group: "proformas"},
	{Code: "delivery_notes.read", Name: "Voir les bons de livraison", Group: "delivery_notes"},
	{Code: "delivery_notes.write", Name: "Gérer les bons de livraison", Group: "delivery_notes"},
	{Code: "users.read", Name: "Voir les utilisateurs", Group: "users"},
	{Code: "users.write", Name: "Gérer les utilisateurs", Group: "users"},
	{Code: "users.delete", Name: "Supprimer des utilisateurs", Group: "users"},
	{Code: "audit.read", Name: "Voir l'historique", Group: "audit"},
	{Code: "roles.manage", Name: "Gérer les permissions", Group: "roles"},
}

var agentPermissions = []string{
	"dashboard.read",
	"clients.read", "clients.write",
	"products.read", "products.write",
	"invoices.read", "invoices.write",
	"proformas.read", "proformas.write",
	"delivery_notes.read", "delivery_notes.write",
}

// SeedRolesAndPermissions upserts the permission catalog and the two system
// roles. The admin role always holds every permission.
func SeedRolesAndPermissions(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)

	perms := make([]model.Permission, len(DefaultPermissions))
	copy(perms, DefaultPermissions)
	byCode := make(map[string]model.Permission, len(perms))

	for i := range perms {
		p := &perms[i]
		var existing model.Permission
		err := db.Where("code = ?", p.Code).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(p).Error; err != nil {
				return fmt.Errorf("seed permission %s: %w", p.Code, err)
			}
		case err != nil:
			return fmt.Errorf("lookup permission %s: %w", p.Code, err)
		default:
			p.ID = existing.ID
			if err := db.Model(&existing).Updates(map[string]interface{}{"name": p.Name, "group": p.Group}).Error; err != nil {
				return fmt.Errorf("update permission %s: %w", p.Code, err)
			}
		}
		byCode[p.Code] = *p
	}

	roles := []struct {
		name        billing.Role
		description string
		codes       []string
	}{
		{billing.RoleAdmin, "Administrateur, accès complet", nil},
		{billing.RoleAgent, "Agent commercial, documents et catalogue", agentPermissions},
	}

	for _, def := range roles {
		var role model.Role
		err := db.Where("name = ?", string(def.name)).First(&role).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			role = model.Role{Name: string(def.name), Description: def.description, IsSystem: true}
			if err := db.Create(&role).Error; err != nil {
				return fmt.Errorf("seed role %s: %w", def.name, err)
			}
		} else if err != nil {
			return fmt.Errorf("lookup role %s: %w", def.name, err)
		}

		assigned := perms
		if def.codes != nil {
			assigned = make([]model.Permission, 0, len(def.codes))
			for _, code := range def.codes {
				assigned = append(assigned, byCode[code])
			}
		}
		if err := db.Model(&role).Association("Permissions").Replace(assigned); err != nil {
			return fmt.Errorf("assign permissions to %s: %w", def.name, err)
		}
	}
	return nil
}

// SeedAdmin creates the initial administrator when no user exists yet.
func SeedAdmin(ctx context.Context, db *gorm.DB, log *logrus.Logger, username, email, password string) error {
	db = db.WithContext(ctx)

	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 || username == "" || password == "" {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := model.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		Role:     billing.RoleAdmin,
		IsActive: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.WithField("username", username).Info("seeded initial admin user")
	return nil
}
