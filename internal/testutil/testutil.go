// Package testutil opens throwaway SQLite databases and seeds fixtures for
// package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"backoffice/internal/billing"
	"backoffice/internal/database"
	"backoffice/internal/model"
)

// Password is the clear-text password of every seeded user.
const Password = "secret-pass"

// NewDB opens a private in-memory database, migrates the schema and seeds
// roles and permissions.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the shared in-memory database free of lock errors.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.SeedRolesAndPermissions(context.Background(), db); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	return db
}

// SeedUser creates an active user with the given role and Password.
func SeedUser(t *testing.T, db *gorm.DB, username string, role billing.Role) model.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := model.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "Test",
		LastName:  strings.ToUpper(username),
		Password:  string(hashed),
		Role:      role,
		IsActive:  true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	return user
}

func SeedClient(t *testing.T, db *gorm.DB, name string) model.Client {
	t.Helper()
	client := model.Client{Name: name, Phone: "+221 77 000 00 00", Address: "Dakar"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("client: %v", err)
	}
	return client
}

func SeedProduct(t *testing.T, db *gorm.DB, name, price, rate string) model.Product {
	t.Helper()
	product := model.Product{
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
		TVARate:   decimal.RequireFromString(rate),
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("product: %v", err)
	}
	return product
}

// Dec parses a decimal literal.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
