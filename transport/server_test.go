package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewrt/runtime/orchestrator"
)

func newTestSessionFactory() SessionFactory {
	return func(sessionID string, sender orchestrator.ClientSender, room orchestrator.RoomBroadcaster) *orchestrator.Session {
		return orchestrator.NewSession(sessionID, orchestrator.Deps{}, sender, room)
	}
}

func TestServer_Healthz(t *testing.T) {
	srv := NewServer(newTestSessionFactory())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_WithRoute_RegistersCustomHandler(t *testing.T) {
	srv := NewServer(newTestSessionFactory(), WithRoute("GET /report/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/report/iv-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestServer_WS_RoundTripsUnknownMessageAsProtocolError(t *testing.T) {
	srv := NewServer(newTestSessionFactory())
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"not_a_real_type"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"client_protocol"`)
}

func TestServer_WS_InvalidFrameGetsValidationErrorReply(t *testing.T) {
	srv := NewServer(newTestSessionFactory())
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "client_protocol")
}

func TestServer_Shutdown_NoopWithoutListen(t *testing.T) {
	srv := NewServer(newTestSessionFactory())
	assert.NoError(t, srv.Shutdown(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
