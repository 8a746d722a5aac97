package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/w3b2/w3b2-solana-go/engine"
	"github.com/w3b2/w3b2-solana-go/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// Client -> server control messages.
type wsCommand struct {
	Op   string `json:"op"` // subscribe | unsubscribe
	PDA  string `json:"pda"`
	Kind string `json:"kind"` // user | admin
}

// Server -> client frames. Exactly one of Event / End / Error is set per
// stream frame; Ack confirms a control message.
type wsFrame struct {
	Stream string         `json:"stream,omitempty"` // catchup | live
	PDA    string         `json:"pda,omitempty"`
	Event  *wsEvent       `json:"event,omitempty"`
	End    bool           `json:"end,omitempty"`
	Error  string         `json:"error,omitempty"`
	Ack    *wsCommand     `json:"ack,omitempty"`
}

type wsEvent struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime int64           `json:"block_time,omitempty"`
	Index     int             `json:"index"`
	Kind      string          `json:"kind"`
	Body      json.RawMessage `json:"body"`
	Warning   *wsWarning      `json:"warning,omitempty"`
}

type wsWarning struct {
	LiveBacklogOverflow uint64 `json:"live_backlog_overflow,omitempty"`
	Lagged              uint64 `json:"lagged,omitempty"`
}

func encodeEvent(rec *types.Record) (*wsEvent, error) {
	body, err := json.Marshal(rec.Event)
	if err != nil {
		return nil, err
	}
	ev := &wsEvent{
		Signature: rec.Signature.String(),
		Slot:      rec.Slot,
		BlockTime: rec.BlockTime,
		Index:     rec.Index,
		Kind:      string(rec.Event.Kind()),
		Body:      body,
	}
	if !rec.Warning.Zero() {
		ev.Warning = &wsWarning{
			LiveBacklogOverflow: rec.Warning.LiveBacklogOverflow,
			Lagged:              rec.Warning.Lagged,
		}
	}
	return ev, nil
}

// wsSession is one WebSocket connection with its active listeners.
type wsSession struct {
	srv  *Server
	conn *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	listeners map[string]*sessionListener
}

type sessionListener struct {
	listener *engine.Listener
	cancel   context.CancelFunc
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.trackConn(conn)

	sess := &wsSession{
		srv:       s,
		conn:      conn,
		listeners: make(map[string]*sessionListener),
	}
	defer sess.closeAll()
	defer s.untrackConn(conn)
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go sess.pingLoop(ctx)

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		switch cmd.Op {
		case "subscribe":
			sess.subscribe(ctx, cmd)
		case "unsubscribe":
			sess.unsubscribe(cmd.PDA)
			sess.send(&wsFrame{Ack: &cmd})
		default:
			sess.send(&wsFrame{Error: "unknown op"})
		}
	}
}

func (sess *wsSession) subscribe(ctx context.Context, cmd wsCommand) {
	pda, err := parseKey("pda", cmd.PDA)
	if err != nil {
		sess.send(&wsFrame{Error: err.Error()})
		return
	}
	kind := types.ProfileUser
	if cmd.Kind == "admin" {
		kind = types.ProfileAdmin
	}

	sess.mu.Lock()
	if _, dup := sess.listeners[cmd.PDA]; dup {
		sess.mu.Unlock()
		sess.send(&wsFrame{Error: "already subscribed", PDA: cmd.PDA})
		return
	}
	sess.mu.Unlock()

	l, err := sess.srv.events.Subscribe(ctx, pda, kind)
	if err != nil {
		sess.send(&wsFrame{Error: err.Error(), PDA: cmd.PDA})
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	sess.mu.Lock()
	sess.listeners[cmd.PDA] = &sessionListener{listener: l, cancel: cancel}
	sess.mu.Unlock()

	sess.send(&wsFrame{Ack: &cmd})
	go sess.pump(subCtx, cmd.PDA, l)
}

func (sess *wsSession) unsubscribe(pdaStr string) {
	sess.mu.Lock()
	sl, ok := sess.listeners[pdaStr]
	if ok {
		delete(sess.listeners, pdaStr)
	}
	sess.mu.Unlock()
	if ok {
		sl.cancel()
		sl.listener.Close()
	}
}

func (sess *wsSession) closeAll() {
	sess.mu.Lock()
	ls := sess.listeners
	sess.listeners = make(map[string]*sessionListener)
	sess.mu.Unlock()
	for _, sl := range ls {
		sl.cancel()
		sl.listener.Close()
	}
}

// pump relays the two streams in order: the catch-up stream to its end, then
// the live stream until the listener or connection goes away.
func (sess *wsSession) pump(ctx context.Context, pdaStr string, l *engine.Listener) {
	defer sess.unsubscribe(pdaStr)

	for {
		rec, err := l.NextCatchup(ctx)
		if err != nil {
			if err == engine.ErrStreamEnd {
				sess.send(&wsFrame{Stream: "catchup", PDA: pdaStr, End: true})
				break
			}
			sess.send(&wsFrame{Stream: "catchup", PDA: pdaStr, Error: err.Error()})
			return
		}
		sess.sendEvent("catchup", pdaStr, rec)
	}

	for {
		rec, err := l.NextLive(ctx)
		if err != nil {
			if err == engine.ErrStreamEnd {
				sess.send(&wsFrame{Stream: "live", PDA: pdaStr, End: true})
			} else if ctx.Err() == nil {
				sess.send(&wsFrame{Stream: "live", PDA: pdaStr, Error: err.Error()})
			}
			return
		}
		sess.sendEvent("live", pdaStr, rec)
	}
}

func (sess *wsSession) sendEvent(stream, pdaStr string, rec *types.Record) {
	ev, err := encodeEvent(rec)
	if err != nil {
		sess.srv.logger.Error("encode event", "error", err)
		return
	}
	sess.send(&wsFrame{Stream: stream, PDA: pdaStr, Event: ev})
}

func (sess *wsSession) send(frame *wsFrame) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	_ = sess.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = sess.conn.WriteJSON(frame)
}

func (sess *wsSession) pingLoop(ctx context.Context) {
	t := time.NewTicker(wsPingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sess.writeMu.Lock()
			_ = sess.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = sess.conn.WriteMessage(websocket.PingMessage, nil)
			sess.writeMu.Unlock()
		}
	}
}
