package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/pkg/response"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	maxIdempotencyKey = 128
)

// Idempotency replays the stored response of a mutating request retried with
// the same Idempotency-Key. It must run after Authenticate: keys are scoped to
// the user.
type Idempotency struct {
	repo repository.IdempotencyRepository
	log  *logrus.Logger
}

func NewIdempotency(repo repository.IdempotencyRepository, log *logrus.Logger) *Idempotency {
	return &Idempotency{repo: repo, log: log}
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func requestHash(method, path string, body []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	h.Write([]byte{'\n'})
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}

func (m *Idempotency) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKey {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Idempotency-Key too long"))
			return
		}
		principal, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "could not read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		userID := principal.UserID.String()
		path := c.Request.URL.RequestURI()
		hash := requestHash(c.Request.Method, path, body, userID)

		stored, reserved, err := m.repo.Reserve(c.Request.Context(), &model.IdempotencyKey{
			Key:         key,
			UserID:      userID,
			RequestHash: hash,
			Method:      c.Request.Method,
			Path:        path,
		})
		if err != nil {
			m.log.WithError(err).WithField("key", key).Error("idempotency lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "idempotency lookup failed"))
			return
		}
		if !reserved {
			switch {
			case stored.RequestHash != hash:
				c.AbortWithStatusJSON(http.StatusConflict, response.ErrorWithCode(http.StatusConflict, "idempotency_mismatch", "Idempotency-Key reuse with different request"))
			case stored.ResponseStatus == 0:
				c.AbortWithStatusJSON(http.StatusConflict, response.ErrorWithCode(http.StatusConflict, "idempotency_in_progress", "a request with this Idempotency-Key is still in progress"))
			default:
				c.Header("Idempotent-Replayed", "true")
				c.Data(stored.ResponseStatus, "application/json; charset=utf-8", stored.ResponseBody)
				c.Abort()
			}
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		ctx := context.WithoutCancel(c.Request.Context())
		status := rec.Status()
		if status >= http.StatusInternalServerError {
			if err := m.repo.Release(ctx, key, userID); err != nil {
				m.log.WithError(err).WithField("key", key).Warn("failed to release idempotency key")
			}
			return
		}
		if err := m.repo.Complete(ctx, key, userID, status, rec.body.Bytes()); err != nil {
			m.log.WithError(err).WithField("key", key).Warn("failed to store idempotent response")
		}
	}
}
