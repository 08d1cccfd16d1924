package handlers

import (
	"masterserver/domain"
	"masterserver/service"
	"masterserver/session"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// OpenSession (GET /v1/session) upgrades to a persistent registration session and serves it until the client
// leaves, the idle timeout fires or the session commits too many protocol violations. Closing the session leaves
// the registry untouched: the bound entry lives on until UNREGISTER or TTL expiry.
func (h *RegistrationServer) OpenSession(ectx echo.Context) error {
	conn, err := h.upgrader.Upgrade(ectx.Response(), ectx.Request(), nil)
	if err != nil {
		// The upgrader has already answered the request.
		level.Info(h.logger).Log("msg", "websocket upgrade failed", "remote", ectx.RealIP(), "err", err)
		return nil
	}
	if !h.conns.add(conn) {
		closeConn(conn, websocket.CloseGoingAway, "server shutting down")
		return nil
	}
	defer h.conns.remove(conn)

	sess := h.sessions.Open(domain.RoleRegistration, domain.TransportPersistent, ectx.RealIP())
	defer h.sessions.Close(sess)
	h.serveSession(conn, sess)
	return nil
}

func (h *RegistrationServer) serveSession(conn *websocket.Conn, sess *session.Session) {
	logger := log.With(h.logger, "session", sess.ID(), "remote", sess.RemoteHost())
	defer conn.Close()

	conn.SetReadLimit(maxFrameBytes)
	if err := armIdleTimeout(conn, h.idleTimeout); err != nil {
		return
	}
	welcome := WelcomeFrame{
		V:                   RegistrationProtocolVersion,
		Type:                FrameWelcome,
		Session:             sess.ID(),
		TtlMs:               h.ttl.Milliseconds(),
		HeartbeatIntervalMs: h.heartbeatInterval.Milliseconds(),
	}
	if err := writeFrame(conn, h.idleTimeout, welcome); err != nil {
		level.Debug(logger).Log("msg", "welcome not delivered", "err", err)
		return
	}
	level.Info(logger).Log("msg", "registration session joined")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			bound, _, _ := sess.Binding()
			if isNormalClose(err) {
				level.Info(logger).Log("msg", "registration session left", "bound", bound)
			} else {
				level.Info(logger).Log("msg", "registration session dropped", "bound", bound, "err", err)
			}
			return
		}
		if err := armIdleTimeout(conn, h.idleTimeout); err != nil {
			return
		}

		reply, err := h.handleFrame(sess, data)
		exceeded := false
		if isViolation(err) {
			level.Info(logger).Log("msg", "protocol violation", "err", err)
			exceeded = sess.Violation()
		} else {
			sess.Accepted()
		}
		if err := writeFrame(conn, h.idleTimeout, reply); err != nil {
			level.Info(logger).Log("msg", "reply not delivered", "err", err)
			return
		}
		if exceeded {
			level.Info(logger).Log("msg", "closing session after repeated protocol violations")
			closeConn(conn, websocket.ClosePolicyViolation, "too many protocol violations")
			return
		}
	}
}

// handleFrame decodes and executes one client frame. The returned error is the reason the frame was rejected;
// the reply already reports it to the client.
func (h *RegistrationServer) handleFrame(sess *session.Session, data []byte) (RegistrationReply, error) {
	var in RegistrationFrame
	hdr, err := decodeFrame(data, RegistrationProtocolVersion, &in)
	reply := RegistrationReply{V: RegistrationProtocolVersion, Type: FrameReply, Seq: hdr.Seq}
	if err == nil && !sess.Allow() {
		err = service.NewRateLimitedError("too many frames")
	}
	if err == nil {
		err = h.dispatch(sess, in, &reply)
	}
	reply.Status, reply.Message = replyStatus(err)
	return reply, err
}

func (h *RegistrationServer) dispatch(sess *session.Session, in RegistrationFrame, reply *RegistrationReply) error {
	switch in.Type {
	case FrameRegister:
		resp, err := h.register(sess, RegisterRequest{
			InstanceId: in.InstanceId,
			Address:    in.Address,
			Port:       in.Port,
			Metadata:   in.Metadata,
		})
		if err != nil {
			return err
		}
		reply.Identity = resp.Identity
		reply.Generation = resp.Generation
		reply.TtlMs = resp.TtlMs
		reply.HeartbeatIntervalMs = resp.HeartbeatIntervalMs
		return nil
	case FrameHeartbeat:
		resp, err := h.heartbeat(sess, HeartbeatRequest{
			Identity:   in.Identity,
			Generation: in.Generation,
			Metadata:   in.Metadata,
		})
		if err != nil {
			return err
		}
		reply.Generation = resp.Generation
		return nil
	case FrameUnregister:
		resp, err := h.unregister(sess, UnregisterRequest{
			Identity:   in.Identity,
			Generation: in.Generation,
		})
		if err != nil {
			return err
		}
		reply.Removal = resp.Status
		return nil
	default:
		return service.NewMalformedError("unknown frame type "+in.Type, nil)
	}
}
