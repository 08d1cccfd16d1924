package handlers

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"masterserver/api"
	"masterserver/domain"
	"masterserver/helpers"
	"masterserver/registry"
	"masterserver/service"
	"masterserver/session"

	"github.com/go-kit/log"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	testTTL         = 30 * time.Second
	testIdleTimeout = 5 * time.Second
	testCallerIP    = "192.0.2.1"
)

type testEnv struct {
	clock        *helpers.ManualClock
	store        *registry.Store
	broadcaster  *service.Broadcaster
	sessions     *session.Manager
	registration *RegistrationServer
	discovery    *DiscoveryServer
	regEcho      *echo.Echo
	discEcho     *echo.Echo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.NewNopLogger()
	env := &testEnv{clock: helpers.NewManualClock(helpers.TestNow())}
	env.broadcaster = service.NewBroadcaster(16, logger)
	env.store = registry.NewStore(registry.Options{TTL: testTTL, Shards: 4}, env.clock, env.broadcaster, logger)
	env.sessions = session.NewManager(session.Options{
		RateLimit:     rate.Limit(1000),
		Burst:         1000,
		MaxViolations: 3,
	}, env.clock, logger)

	env.registration = NewRegistrationServer(env.store, env.sessions, env.clock, RegistrationOptions{
		TTL:         testTTL,
		IdleTimeout: testIdleTimeout,
		Schema:      domain.DefaultSchema(),
	}, logger)
	env.discovery = NewDiscoveryServer(env.store, env.broadcaster, env.sessions, env.clock, DiscoveryOptions{
		Paging:      Paging{Default: 3, Max: 5},
		IdleTimeout: testIdleTimeout,
		Schema:      domain.DefaultSchema(),
	}, logger)

	env.regEcho = newTestEcho(t, api.RegistrationOpenAPI)
	RegisterRegistrationHandlers(env.regEcho, env.registration)
	env.discEcho = newTestEcho(t, api.DiscoveryOpenAPI)
	RegisterDiscoveryHandlers(env.discEcho, env.discovery)

	t.Cleanup(func() {
		env.registration.Shutdown()
		env.discovery.Shutdown()
	})
	return env
}

func newTestEcho(t *testing.T, spec []byte) *echo.Echo {
	t.Helper()
	validator, err := NewOpenAPIValidator(spec)
	require.NoError(t, err)

	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	service.RegisterErrorHandler(e, log.NewNopLogger())
	e.Use(validator)
	return e
}

// do sends a JSON request from testCallerIP and returns the recorder.
func do(e *echo.Echo, method, target string, body any) *httptest.ResponseRecorder {
	return doFrom(e, testCallerIP, method, target, body)
}

func doFrom(e *echo.Echo, callerIP, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = net.JoinHostPort(callerIP, "40000")
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode[service.ErrResponse](t, rec)
	require.NotNil(t, resp.Error, rec.Body.String())
	return resp.Error.Code
}

// dial opens a WebSocket to path on a live server for e and reads the welcome frame.
func dial(t *testing.T, e *echo.Echo, path string) (*websocket.Conn, WelcomeFrame) {
	t.Helper()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })

	var welcome WelcomeFrame
	readJSON(t, conn, &welcome)
	return conn, welcome
}

func readJSON(t *testing.T, conn *websocket.Conn, dst any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(dst))
}
