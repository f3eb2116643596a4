package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
)

func newTestServer(t *testing.T) (*Hub, *auth.TokenManager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	hub := NewHub(log)
	go hub.Run()

	tokens := auth.NewTokenManager([]byte("ws-secret"), time.Hour)
	r := gin.New()
	r.GET("/ws", ServeWs(hub, tokens))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, tokens, srv
}

func TestServeWs_RejectsMissingToken(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub, tokens, srv := newTestServer(t)

	token, _, err := tokens.Issue(auth.Principal{UserID: uuid.New(), Username: "awa", Role: billing.RoleAgent})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("invoice.finalized", map[string]string{"number": "FAC-2026-001"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "invoice.finalized", ev.Type)
}

func TestHub_NilPublishIsNoop(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() { hub.Publish("x", nil) })
}
