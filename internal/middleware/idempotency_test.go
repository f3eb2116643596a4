package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/logger"
	"backoffice/internal/repository"
	"backoffice/internal/testutil"
)

func newIdempotentRouter(t *testing.T, status int) (*gin.Engine, *int32) {
	t.Helper()
	db := testutil.NewDB(t)
	m := NewIdempotency(repository.NewIdempotencyRepository(db), logger.Discard())
	user := auth.Principal{UserID: uuid.MustParse("3f2b8c1e-5d4a-4b7e-9a6f-1c2d3e4f5a6b"), Username: "awa", Role: billing.RoleAgent}

	var calls int32
	r := gin.New()
	r.Use(func(c *gin.Context) { SetPrincipal(c, user); c.Next() })
	r.Use(m.Handler())
	r.POST("/api/invoices/:id/finalize/", func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	r.GET("/api/invoices/", func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.Status(http.StatusOK)
	})
	return r, &calls
}

func send(r http.Handler, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	r, calls := newIdempotentRouter(t, http.StatusOK)

	first := send(r, http.MethodPost, "/api/invoices/1/finalize/", "k-1", "{}")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"call":1}`, first.Body.String())

	second := send(r, http.MethodPost, "/api/invoices/1/finalize/", "k-1", "{}")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"call":1}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))

	third := send(r, http.MethodPost, "/api/invoices/1/finalize/", "k-2", "{}")
	assert.JSONEq(t, `{"call":2}`, third.Body.String())
}

func TestIdempotency_RejectsDifferentRequestWithSameKey(t *testing.T) {
	r, calls := newIdempotentRouter(t, http.StatusOK)

	send(r, http.MethodPost, "/api/invoices/1/finalize/", "k-1", "{}")
	w := send(r, http.MethodPost, "/api/invoices/2/finalize/", "k-1", "{}")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "idempotency_mismatch")
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	r, calls := newIdempotentRouter(t, http.StatusInternalServerError)

	send(r, http.MethodPost, "/api/invoices/1/finalize/", "k-1", "{}")
	send(r, http.MethodPost, "/api/invoices/1/finalize/", "k-1", "{}")
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestIdempotency_PassThrough(t *testing.T) {
	r, calls := newIdempotentRouter(t, http.StatusOK)

	send(r, http.MethodPost, "/api/invoices/1/finalize/", "", "{}")
	send(r, http.MethodPost, "/api/invoices/1/finalize/", "", "{}")
	send(r, http.MethodGet, "/api/invoices/", "k-1", "")
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))

	w := send(r, http.MethodPost, "/api/invoices/1/finalize/", strings.Repeat("x", 129), "{}")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
