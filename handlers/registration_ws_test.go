package handlers

import (
	"testing"
	"time"

	"masterserver/api"
	"masterserver/domain"
	"masterserver/service"
	"masterserver/session"

	"github.com/go-kit/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const loopbackIP = "127.0.0.1"

func sendRegistration(t *testing.T, conn *websocket.Conn, frame RegistrationFrame) RegistrationReply {
	t.Helper()
	if frame.V == 0 {
		frame.V = RegistrationProtocolVersion
	}
	require.NoError(t, conn.WriteJSON(frame))
	var reply RegistrationReply
	readJSON(t, conn, &reply)
	require.Equal(t, FrameReply, reply.Type)
	return reply
}

func TestRegistrationSession_Welcome(t *testing.T) {
	env := newTestEnv(t)
	_, welcome := dial(t, env.regEcho, "/v1/session")

	assert.Equal(t, RegistrationProtocolVersion, welcome.V)
	assert.Equal(t, FrameWelcome, welcome.Type)
	assert.NotEmpty(t, welcome.Session)
	assert.Equal(t, testTTL.Milliseconds(), welcome.TtlMs)
	assert.Equal(t, (testTTL / 3).Milliseconds(), welcome.HeartbeatIntervalMs)
	assert.Equal(t, 1, env.sessions.Count(domain.RoleRegistration))
}

func TestRegistrationSession_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	conn, _ := dial(t, env.regEcho, "/v1/session")

	reply := sendRegistration(t, conn, RegistrationFrame{
		Type:       FrameRegister,
		Seq:        1,
		InstanceId: "A",
		Port:       27015,
		Metadata:   &Metadata{"mode": "ctf"},
	})
	require.Equal(t, StatusOK, reply.Status, reply.Message)
	assert.Equal(t, uint64(1), reply.Seq)
	assert.Equal(t, loopbackIP+"/A", reply.Identity)
	assert.Equal(t, int64(1), reply.Generation)

	// A bound session may omit identity and generation.
	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameHeartbeat, Seq: 2})
	assert.Equal(t, StatusOK, reply.Status, reply.Message)
	assert.Equal(t, int64(1), reply.Generation)

	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameHeartbeat, Seq: 3, Metadata: &Metadata{"players": 4}})
	assert.Equal(t, StatusOK, reply.Status, reply.Message)
	entry, ok := env.store.Get(domain.Identity(loopbackIP + "/A"))
	require.True(t, ok)
	assert.Equal(t, domain.Metadata{"players": domain.IntValue(4)}, entry.Metadata)

	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameUnregister, Seq: 4})
	assert.Equal(t, StatusOK, reply.Status, reply.Message)
	assert.Equal(t, string(domain.RemoveOK), reply.Removal)
	assert.Equal(t, 0, env.store.Len())

	// The binding is gone with the entry.
	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameHeartbeat, Seq: 5})
	assert.Equal(t, service.ErrForbidden, reply.Status)
}

func TestRegistrationSession_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.store.Upsert(domain.Registration{
		Identity:   domain.NewIdentity(loopbackIP, "other"),
		InstanceID: "other",
		Address:    loopbackIP,
		Port:       1,
		Metadata:   domain.Metadata{},
	})
	require.NoError(t, err)
	conn, _ := dial(t, env.regEcho, "/v1/session")

	reply := sendRegistration(t, conn, RegistrationFrame{Type: FrameHeartbeat, Seq: 1, Identity: string(other.Identity), Generation: 1})
	assert.Equal(t, service.ErrForbidden, reply.Status)

	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameRegister, Seq: 2, InstanceId: "mine", Port: 2})
	require.Equal(t, StatusOK, reply.Status, reply.Message)

	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameUnregister, Seq: 3, Identity: string(other.Identity), Generation: 1})
	assert.Equal(t, service.ErrForbidden, reply.Status)
	_, ok := env.store.Get(other.Identity)
	assert.True(t, ok)
}

func TestRegistrationSession_StaleAndUnknown(t *testing.T) {
	env := newTestEnv(t)
	conn, _ := dial(t, env.regEcho, "/v1/session")

	reply := sendRegistration(t, conn, RegistrationFrame{Type: FrameRegister, Seq: 1, InstanceId: "A", Port: 1})
	require.Equal(t, StatusOK, reply.Status, reply.Message)
	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameRegister, Seq: 2, InstanceId: "A", Port: 1})
	require.Equal(t, int64(2), reply.Generation)

	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameHeartbeat, Seq: 3, Generation: 1})
	assert.Equal(t, service.ErrStaleGeneration, reply.Status)

	env.clock.Advance(testTTL + time.Second)
	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameHeartbeat, Seq: 4})
	assert.Equal(t, service.ErrUnknownIdentity, reply.Status)

	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameRegister, Seq: 5, InstanceId: "A", Port: 1})
	require.Equal(t, StatusOK, reply.Status, reply.Message)
	assert.Equal(t, int64(3), reply.Generation)
}

func TestRegistrationSession_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		frame  string
		status string
	}{
		{"not json", `{"v":1,`, service.ErrMalformed},
		{"unsupported version", `{"v":2,"type":"register","seq":7}`, service.ErrUnsupportedVersion},
		{"missing type", `{"v":1,"seq":7}`, service.ErrMalformed},
		{"unknown type", `{"v":1,"type":"query","seq":7}`, service.ErrMalformed},
		{"wrong field type", `{"v":1,"type":"register","seq":7,"port":"x"}`, service.ErrMalformed},
		{"metadata outside schema", `{"v":1,"type":"register","seq":7,"instance_id":"a","port":1,"metadata":{"cheats":true}}`, service.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			conn, _ := dial(t, env.regEcho, "/v1/session")

			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
			var reply RegistrationReply
			readJSON(t, conn, &reply)
			assert.Equal(t, tt.status, reply.Status)
			assert.NotEmpty(t, reply.Message)
			assert.Equal(t, 0, env.store.Len())
		})
	}
}

func TestRegistrationSession_ClosedAfterRepeatedViolations(t *testing.T) {
	env := newTestEnv(t)
	conn, _ := dial(t, env.regEcho, "/v1/session")

	for seq := 1; seq <= 3; seq++ {
		reply := sendRegistration(t, conn, RegistrationFrame{V: 9, Type: FrameRegister, Seq: uint64(seq)})
		assert.Equal(t, service.ErrUnsupportedVersion, reply.Status)
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestRegistrationSession_AcceptedFrameResetsViolations(t *testing.T) {
	env := newTestEnv(t)
	conn, _ := dial(t, env.regEcho, "/v1/session")

	for round := 0; round < 3; round++ {
		for i := 0; i < 2; i++ {
			reply := sendRegistration(t, conn, RegistrationFrame{V: 9, Type: FrameHeartbeat})
			assert.Equal(t, service.ErrUnsupportedVersion, reply.Status)
		}
		reply := sendRegistration(t, conn, RegistrationFrame{Type: FrameRegister, InstanceId: "A", Port: 1})
		require.Equal(t, StatusOK, reply.Status, reply.Message)
	}
}

func TestRegistrationSession_DisconnectKeepsEntry(t *testing.T) {
	env := newTestEnv(t)
	conn, _ := dial(t, env.regEcho, "/v1/session")

	reply := sendRegistration(t, conn, RegistrationFrame{Type: FrameRegister, Seq: 1, InstanceId: "A", Port: 1})
	require.Equal(t, StatusOK, reply.Status, reply.Message)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return env.sessions.Count(domain.RoleRegistration) == 0
	}, 2*time.Second, 10*time.Millisecond)

	entry, ok := env.store.Get(domain.Identity(loopbackIP + "/A"))
	require.True(t, ok)
	assert.Equal(t, domain.Generation(1), entry.Generation)

	// Only the TTL removes it.
	env.clock.Advance(testTTL + time.Millisecond)
	_, ok = env.store.Get(entry.Identity)
	assert.False(t, ok)
}

func TestRegistrationSession_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	sessions := session.NewManager(session.Options{RateLimit: rate.Every(time.Hour), Burst: 1}, env.clock, log.NewNopLogger())
	server := NewRegistrationServer(env.store, sessions, env.clock, RegistrationOptions{
		TTL:         testTTL,
		IdleTimeout: testIdleTimeout,
		Schema:      domain.DefaultSchema(),
	}, log.NewNopLogger())
	t.Cleanup(server.Shutdown)
	e := newTestEcho(t, api.RegistrationOpenAPI)
	RegisterRegistrationHandlers(e, server)
	conn, _ := dial(t, e, "/v1/session")

	reply := sendRegistration(t, conn, RegistrationFrame{Type: FrameRegister, Seq: 1, InstanceId: "A", Port: 1})
	require.Equal(t, StatusOK, reply.Status, reply.Message)

	reply = sendRegistration(t, conn, RegistrationFrame{Type: FrameHeartbeat, Seq: 2})
	assert.Equal(t, service.ErrRateLimited, reply.Status)
	assert.Equal(t, uint64(2), reply.Seq)
}

func TestRegistrationSession_ShutdownClosesSessions(t *testing.T) {
	env := newTestEnv(t)
	conn, _ := dial(t, env.regEcho, "/v1/session")
	require.Eventually(t, func() bool { return env.registration.conns.len() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.registration.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, env.registration.conns.len())
}
