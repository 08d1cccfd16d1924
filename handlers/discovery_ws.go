package handlers

import (
	"sync"

	"masterserver/domain"
	"masterserver/service"
	"masterserver/session"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const watchSendBuffer = 32

// Watch (GET /v1/watch) upgrades to a persistent discovery session. The client may query pages and subscribe to
// a live feed of registry events matching a filter.
func (h *DiscoveryServer) Watch(ectx echo.Context) error {
	conn, err := h.upgrader.Upgrade(ectx.Response(), ectx.Request(), nil)
	if err != nil {
		level.Info(h.logger).Log("msg", "websocket upgrade failed", "remote", ectx.RealIP(), "err", err)
		return nil
	}
	if !h.conns.add(conn) {
		closeConn(conn, websocket.CloseGoingAway, "server shutting down")
		return nil
	}
	defer h.conns.remove(conn)

	sess := h.sessions.Open(domain.RoleDiscovery, domain.TransportPersistent, ectx.RealIP())
	defer h.sessions.Close(sess)
	h.serveWatch(conn, sess)
	return nil
}

// closeFrame asks the writer to close the connection once every frame queued before it is written.
type closeFrame struct {
	code   int
	reason string
}

// watcher owns the write side of one discovery connection. Replies and events are queued on out and written by
// a single goroutine, since a gorilla connection allows only one concurrent writer.
type watcher struct {
	conn       *websocket.Conn
	out        chan any
	quit       chan struct{}
	writerDone chan struct{}
	wg         sync.WaitGroup
	sub        *service.Subscription
}

// send queues a frame. It returns false once the session is ending.
func (w *watcher) send(frame any) bool {
	select {
	case w.out <- frame:
		return true
	case <-w.writerDone:
		return false
	case <-w.quit:
		return false
	}
}

func (h *DiscoveryServer) serveWatch(conn *websocket.Conn, sess *session.Session) {
	logger := log.With(h.logger, "session", sess.ID(), "remote", sess.RemoteHost())
	w := &watcher{
		conn:       conn,
		out:        make(chan any, watchSendBuffer),
		quit:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	defer func() {
		close(w.quit)
		h.unsubscribe(w)
		_ = conn.Close()
		w.wg.Wait()
	}()

	w.wg.Add(1)
	go h.writeLoop(w, logger)

	conn.SetReadLimit(maxFrameBytes)
	if err := armIdleTimeout(conn, h.idleTimeout); err != nil {
		return
	}
	if !w.send(WelcomeFrame{V: DiscoveryProtocolVersion, Type: FrameWelcome, Session: sess.ID()}) {
		return
	}
	level.Info(logger).Log("msg", "discovery session joined")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				level.Info(logger).Log("msg", "discovery session left")
			} else {
				level.Info(logger).Log("msg", "discovery session dropped", "err", err)
			}
			return
		}
		if err := armIdleTimeout(conn, h.idleTimeout); err != nil {
			return
		}

		reply, err := h.handleFrame(w, sess, data)
		exceeded := false
		if isViolation(err) {
			level.Info(logger).Log("msg", "protocol violation", "err", err)
			exceeded = sess.Violation()
		} else {
			sess.Accepted()
		}
		if !w.send(reply) {
			return
		}
		if exceeded {
			level.Info(logger).Log("msg", "closing session after repeated protocol violations")
			if w.send(closeFrame{code: websocket.ClosePolicyViolation, reason: "too many protocol violations"}) {
				<-w.writerDone
			}
			return
		}
	}
}

func (h *DiscoveryServer) writeLoop(w *watcher, logger log.Logger) {
	defer w.wg.Done()
	defer close(w.writerDone)
	for {
		select {
		case frame := <-w.out:
			if cf, ok := frame.(closeFrame); ok {
				closeConn(w.conn, cf.code, cf.reason)
				return
			}
			if err := writeFrame(w.conn, h.idleTimeout, frame); err != nil {
				level.Debug(logger).Log("msg", "write failed", "err", err)
				// Unblocks the reader.
				_ = w.conn.Close()
				return
			}
		case <-w.quit:
			return
		}
	}
}

// handleFrame decodes and executes one client frame and returns the frame to answer with.
func (h *DiscoveryServer) handleFrame(w *watcher, sess *session.Session, data []byte) (any, error) {
	var in DiscoveryFrame
	hdr, err := decodeFrame(data, DiscoveryProtocolVersion, &in)
	if err == nil && !sess.Allow() {
		err = service.NewRateLimitedError("too many frames")
	}
	if err == nil {
		switch in.Type {
		case FrameQuery:
			var resp ServersResponse
			resp, err = h.query(in)
			if err == nil {
				return ServersFrame{V: DiscoveryProtocolVersion, Type: FrameServers, Seq: hdr.Seq, ServersResponse: resp}, nil
			}
		case FrameSubscribe:
			err = h.subscribe(w, in)
		case FrameUnsubscribe:
			h.unsubscribe(w)
		default:
			err = service.NewMalformedError("unknown frame type "+in.Type, nil)
		}
	}
	reply := DiscoveryReply{V: DiscoveryProtocolVersion, Type: FrameReply, Seq: hdr.Seq}
	reply.Status, reply.Message = replyStatus(err)
	return reply, err
}

func (h *DiscoveryServer) query(in DiscoveryFrame) (ServersResponse, error) {
	query, err := fromQuery(in.Filters, in.Cursor, in.Limit, h.paging, h.schema)
	if err != nil {
		return ServersResponse{}, err
	}
	return h.list(query)
}

// subscribe replaces the session's event feed with one for the frame's filters.
func (h *DiscoveryServer) subscribe(w *watcher, in DiscoveryFrame) error {
	query, err := fromQuery(in.Filters, "", nil, h.paging, h.schema)
	if err != nil {
		return err
	}
	h.unsubscribe(w)
	sub := h.events.Subscribe(query.Filter)
	w.sub = sub

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for ev := range sub.Events() {
			if !w.send(toEventFrame(ev)) {
				return
			}
		}
	}()
	return nil
}

func (h *DiscoveryServer) unsubscribe(w *watcher) {
	if w.sub != nil {
		w.sub.Close()
		w.sub = nil
	}
}
