package service

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/config"
	"backoffice/internal/lock"
	"backoffice/internal/logger"
	"backoffice/internal/metrics"
	"backoffice/internal/model"
	"backoffice/internal/pdf"
	"backoffice/internal/repository"
	"backoffice/internal/testutil"
)

var fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) Publish(eventType string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, eventType)
}

func (e *eventLog) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

type fixture struct {
	db      *gorm.DB
	infra   *Infra
	events  *eventLog
	admin   model.User
	agent   model.User
	client  model.Client
	cement  model.Product
	sand    model.Product
	tokens  *auth.TokenManager
	invoice InvoiceService
	profo   ProformaService
	notes   DeliveryNoteService
	clients ClientService
	prods   ProductService
	roles   RoleService
	users   UserService
	audits  AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	events := &eventLog{}

	invoiceRepo := repository.NewInvoiceRepository(db)
	proformaRepo := repository.NewProformaRepository(db)
	noteRepo := repository.NewDeliveryNoteRepository(db)
	clientRepo := repository.NewClientRepository(db)
	productRepo := repository.NewProductRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	infra := &Infra{
		Tx:       repository.NewTransactionManager(db),
		Audit:    auditRepo,
		Locker:   lock.Noop{},
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Events:   events,
		Log:      logger.Discard(),
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	}
	renderer := pdf.NewRenderer(config.Company{Name: "Moultazam Distribution"}, "FCFA")
	tokens := auth.NewTokenManager([]byte("test-secret"), time.Hour)
	roles := NewRoleService(repository.NewRoleRepository(db), infra)

	return &fixture{
		db:      db,
		infra:   infra,
		events:  events,
		admin:   testutil.SeedUser(t, db, "admin", billing.RoleAdmin),
		agent:   testutil.SeedUser(t, db, "awa", billing.RoleAgent),
		client:  testutil.SeedClient(t, db, "Sotrac"),
		cement:  testutil.SeedProduct(t, db, "Ciment CEM II", "1000", "18"),
		sand:    testutil.SeedProduct(t, db, "Sable", "150", "0"),
		tokens:  tokens,
		invoice: NewInvoiceService(invoiceRepo, clientRepo, productRepo, renderer, infra),
		profo:   NewProformaService(proformaRepo, invoiceRepo, clientRepo, productRepo, renderer, infra),
		notes:   NewDeliveryNoteService(noteRepo, clientRepo, productRepo, renderer, infra),
		clients: NewClientService(clientRepo, infra),
		prods:   NewProductService(productRepo, infra),
		roles:   roles,
		users:   NewUserService(repository.NewUserRepository(db), roles, tokens, 24*time.Hour, infra),
		audits:  NewAuditService(auditRepo),
	}
}

func principal(u model.User) auth.Principal {
	return auth.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func strPtr(s string) *string {
	return &s
}

// line references a catalog product and keeps its defaults.
func productLine(p model.Product, qty string) LineItemRequest {
	id := p.ID.String()
	return LineItemRequest{Product: &id, Quantity: testutil.Dec(qty)}
}

func freeLine(desc, qty, price, rate string) LineItemRequest {
	up, r := testutil.Dec(price), testutil.Dec(rate)
	return LineItemRequest{Description: desc, Quantity: testutil.Dec(qty), UnitPrice: &up, TVARate: &r}
}
