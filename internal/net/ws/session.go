package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/internal/net/proto"
	"zonecore/server/internal/zone"
	"zonecore/server/logging"
	lifecyclelog "zonecore/server/logging/lifecycle"
)

// Session wraps one websocket connection with a write mutex: the session's
// own read loop and the zone tick loop's buffered-ability-ack callback both
// write to the same connection from different goroutines, and
// gorilla/websocket forbids concurrent writers.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewSession wraps conn for serialized writes.
func NewSession(conn *websocket.Conn) *Session { return &Session{conn: conn} }

// WriteMessage sends one text frame, serialized against concurrent callers.
func (s *Session) WriteMessage(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Config bundles one player's session dependencies.
type Config struct {
	ZoneID   string
	PlayerID string
	Session  *Session
	Zone     *zone.Zone
	Grace    *GraceRegistry
	Secret   []byte // HMAC/HKDF secret backing resume tokens; nil disables grace resume
	Pub      logging.Publisher
	Logger   *log.Logger
}

// Serve runs one player's websocket session loop until the connection
// closes, dispatching decoded inbound messages to the zone. Ability acks for
// a request admitted into the buffer arrive later, from the zone tick
// loop's own goroutine via the AckSink passed to SubmitAbility, so all
// outbound writes go through cfg.Session rather than a raw connection.
// Inbound frames are dispatched through proto.DecodeInbound's typed
// variants.
func Serve(cfg Config) {
	if cfg.Session == nil || cfg.Zone == nil {
		if cfg.Session != nil {
			cfg.Session.Close()
		}
		return
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	for {
		_, payload, err := cfg.Session.conn.ReadMessage()
		if err != nil {
			cfg.onDisconnect(logger)
			return
		}

		msg, err := proto.DecodeInbound(payload)
		if err != nil {
			logger.Printf("ws: discarding malformed message from %s: %v", cfg.PlayerID, err)
			continue
		}

		if !cfg.dispatch(msg, logger) {
			return
		}
	}
}

// dispatch handles one decoded inbound message, returning false when the
// connection should be torn down (a write failure mid-dispatch).
func (cfg Config) dispatch(msg any, logger *log.Logger) bool {
	now := time.Now().UnixMilli()

	switch m := msg.(type) {
	case proto.MoveInput:
		if !cfg.Zone.QueueMoveInput(cfg.PlayerID, m.ToModel()) {
			logger.Printf("ws: move input refused for %s (seq=%d)", cfg.PlayerID, m.Seq)
		}

	case proto.AbilityUse:
		req := m.ToModel()
		cfg.Zone.SubmitAbility(now, req, func(a model.AbilityAck) {
			cfg.writeAbilityAck(a, logger)
		})

	case proto.AbilityCancel:
		cfg.Zone.CancelAbility(now, m.ToModel())

	case proto.TargetChange:
		cfg.Zone.SetSelectedTarget(cfg.PlayerID, m.TargetEntityID)

	case proto.EventStreamResyncRequest:
		return cfg.writeResync(m.SinceEventID, logger)

	case proto.SnapAck:
		cfg.Zone.AcknowledgeSnap(cfg.PlayerID, m.Seq)

	default:
		logger.Printf("ws: unhandled inbound type %T from %s", msg, cfg.PlayerID)
	}
	return true
}

func (cfg Config) writeAbilityAck(ack model.AbilityAck, logger *log.Logger) bool {
	data, err := proto.EncodeAbilityAck(proto.AbilityAckFromModel(ack))
	if err != nil {
		logger.Printf("ws: encode ability ack for %s: %v", cfg.PlayerID, err)
		return true
	}
	return cfg.write(data, logger)
}

// writeResync services an event_stream_resync_request: a best-effort
// full-range resync when the requested baseline has already been evicted
// from the log.
func (cfg Config) writeResync(sinceEventID uint64, logger *log.Logger) bool {
	entries, ok := cfg.Zone.Log.Since(sinceEventID)
	fromID, toID := sinceEventID, sinceEventID
	if !ok {
		oldest, latest := cfg.Zone.Log.Bounds()
		entries, _ = cfg.Zone.Log.Range(oldest, latest)
		fromID, toID = oldest, latest
	} else if len(entries) > 0 {
		fromID = entries[0].Seq - 1
		toID = entries[len(entries)-1].Seq
	}

	data, err := proto.EncodeEventStreamResyncResponse(proto.EventStreamBatch{
		FromEventID: fromID,
		ToEventID:   toID,
		ServerTick:  cfg.Zone.Tick(),
		Events:      nonNilEntries(entries),
	})
	if err != nil {
		logger.Printf("ws: encode resync response for %s: %v", cfg.PlayerID, err)
		return true
	}
	return cfg.write(data, logger)
}

func nonNilEntries(entries []eventlog.Entry) []eventlog.Entry {
	if entries == nil {
		return []eventlog.Entry{}
	}
	return entries
}

func (cfg Config) write(data []byte, logger *log.Logger) bool {
	if err := cfg.Session.WriteMessage(data); err != nil {
		logger.Printf("ws: write failed for %s: %v", cfg.PlayerID, err)
		cfg.onDisconnect(logger)
		return false
	}
	return true
}

// onDisconnect starts the player's grace-period timer rather than treating
// the read/write failure as an error.
func (cfg Config) onDisconnect(logger *log.Logger) {
	now := time.Now().UnixMilli()
	if m, ok := cfg.Zone.Lookup(cfg.PlayerID); ok && m.Player != nil {
		m.Player.DisconnectedAt = &now
	}
	if cfg.Grace != nil && cfg.Secret != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		token, err := DeriveResumeToken(cfg.Secret, cfg.PlayerID, cfg.ZoneID)
		if err != nil {
			logger.Printf("ws: derive resume token for %s: %v", cfg.PlayerID, err)
		} else {
			grace := time.Duration(cfg.Zone.Constants.DisconnectGraceSeconds) * time.Second
			if err := cfg.Grace.MarkDisconnected(ctx, cfg.PlayerID, grace, token); err != nil {
				logger.Printf("ws: mark disconnected %s: %v", cfg.PlayerID, err)
			}
		}
	}
	lifecyclelog.PlayerDisconnected(context.Background(), cfg.Pub, cfg.Zone.Tick(), logging.EntityRef{ID: cfg.PlayerID, Kind: "player"}, lifecyclelog.PlayerDisconnectedPayload{Reason: "connection_closed"}, nil)
	cfg.Session.Close()
}
