package ws

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/internal/net/proto"
	"zonecore/server/internal/stats"
	"zonecore/server/internal/zone"
	"zonecore/server/logging"
	lifecyclelog "zonecore/server/logging/lifecycle"
)

// HandlerConfig configures a Handler. Secret backs disconnect-grace resume
// tokens (see token.go); a nil Secret disables grace resume entirely.
type HandlerConfig struct {
	ZoneID string
	Zone   *zone.Zone
	Grace  *GraceRegistry
	Secret []byte
	Pub    logging.Publisher
	Logger *log.Logger

	// SpawnPoint places newly joined players, resolved by the caller (e.g.
	// cmd/server, selecting from persist.ZoneRepo.ListSpawnPoints) at
	// startup. The zero value spawns at the origin.
	SpawnPoint model.Vec3
}

// Handler upgrades incoming HTTP requests to websocket zone sessions,
// spawning a player mob into the zone on first connect.
type Handler struct {
	cfg      HandlerConfig
	logger   *log.Logger
	upgrader websocket.Upgrader

	// mu guards sessions: connection registration/removal happens from each
	// session's own Handle call, while the tick loop's outbound flush step
	// reads a snapshot via Sessions() from a different goroutine.
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHandler constructs a Handler bound to one zone.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Sessions returns a snapshot of currently connected sessions keyed by
// player id, for the caller's outbound-flush loop to pass to
// BroadcastSnapshot/BroadcastEvents after each FixedTick.
func (h *Handler) Sessions() map[string]*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]*Session, len(h.sessions))
	for id, s := range h.sessions {
		out[id] = s
	}
	return out
}

func (h *Handler) register(playerID string, s *Session) {
	h.mu.Lock()
	h.sessions[playerID] = s
	h.mu.Unlock()
}

func (h *Handler) unregister(playerID string) {
	h.mu.Lock()
	delete(h.sessions, playerID)
	h.mu.Unlock()
}

// Handle upgrades the request, spawns or resumes the requesting player, and
// runs its session loop until disconnect.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("id")
	if playerID == "" {
		playerID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws: upgrade failed for %s: %v", playerID, err)
		return
	}
	session := NewSession(conn)

	resumed := h.tryResume(r.Context(), playerID)
	if !resumed {
		h.spawnPlayer(playerID)
	}

	h.register(playerID, session)
	defer h.unregister(playerID)

	Serve(Config{
		ZoneID:   h.cfg.ZoneID,
		PlayerID: playerID,
		Session:  session,
		Zone:     h.cfg.Zone,
		Grace:    h.cfg.Grace,
		Secret:   h.cfg.Secret,
		Pub:      h.cfg.Pub,
		Logger:   h.logger,
	})
}

// tryResume accepts a reconnecting player back into its existing mob state
// if a grace window is still open for it; the caller is expected to have
// validated the presented resume token out-of-band (e.g. an Authorization
// header) before routing here. This only checks the window is still live.
func (h *Handler) tryResume(ctx context.Context, playerID string) bool {
	if h.cfg.Grace == nil {
		return false
	}
	if _, ok := h.cfg.Zone.Lookup(playerID); !ok {
		return false
	}
	if _, err := h.cfg.Grace.ResumeToken(ctx, playerID); err != nil {
		return false
	}
	h.cfg.Grace.ClearGrace(ctx, playerID)
	if m, ok := h.cfg.Zone.Lookup(playerID); ok && m.Player != nil {
		m.Player.DisconnectedAt = nil
	}
	return true
}

func (h *Handler) spawnPlayer(playerID string) {
	m := model.NewMob(playerID, model.KindPlayer)
	m.FactionID = "heroes"
	m.HP = model.Resource{Current: 100, Max: 100}
	m.Mana = model.Resource{Current: 50, Max: 50}
	m.Stamina = model.Resource{Current: 100, Max: 100}
	m.Primary = model.PrimaryStats{Strength: 10, Dexterity: 10, Intelligence: 10, Constitution: 10}
	m.Player = &model.PlayerExtra{}
	m.Position = h.cfg.SpawnPoint

	h.cfg.Zone.AddMob(m, stats.BaseStats{Primary: m.Primary})
	lifecyclelog.PlayerJoined(context.Background(), h.cfg.Pub, h.cfg.Zone.Tick(), m.EntityRef(), lifecyclelog.PlayerJoinedPayload{SpawnX: m.Position.X, SpawnY: m.Position.Y}, nil)
}

// BroadcastSnapshot encodes and sends the full replicated state to every
// connected session; callers invoke this from the net layer's outbound
// flush step after FixedTick returns. sessions maps playerID to its
// Session.
func BroadcastSnapshot(z *zone.Zone, sessions map[string]*Session, logger *log.Logger) {
	mobs := z.Mobs()
	replicated := make([]proto.ReplicatedMob, 0, len(mobs))
	for _, m := range mobs {
		replicated = append(replicated, proto.ReplicatedMobFromModel(m))
	}
	data, err := proto.EncodeReplicatedState(proto.ReplicatedState{ServerTick: z.Tick(), Mobs: replicated})
	if err != nil {
		logger.Printf("ws: encode replicated state: %v", err)
		return
	}
	for id, s := range sessions {
		if err := s.WriteMessage(data); err != nil {
			logger.Printf("ws: broadcast to %s failed: %v", id, err)
		}
	}
}

// BroadcastEvents sends every entry appended since fromEventID (exclusive)
// to every connected session, returning the latest seq sent so the caller
// can track each player's own delivery cursor if it wants per-player
// batching instead (this helper assumes one shared cursor for simplicity).
// An entry whose Location is set is only sent to sessions whose player is
// within z.Constants.DefaultEventRange of it; entries with no Location
// (lifecycle, simulation) always go out to everyone.
func BroadcastEvents(z *zone.Zone, fromEventID uint64, sessions map[string]*Session, logger *log.Logger) uint64 {
	entries, ok := z.Log.Since(fromEventID)
	if !ok || len(entries) == 0 {
		return fromEventID
	}
	toID := entries[len(entries)-1].Seq

	for id, s := range sessions {
		visible := filterByRange(z, id, entries)
		if len(visible) == 0 {
			continue
		}
		data, err := proto.EncodeEventStreamBatch(proto.EventStreamBatch{
			FromEventID: fromEventID,
			ToEventID:   toID,
			ServerTick:  z.Tick(),
			Events:      visible,
		})
		if err != nil {
			logger.Printf("ws: encode event batch: %v", err)
			continue
		}
		if err := s.WriteMessage(data); err != nil {
			logger.Printf("ws: event batch to %s failed: %v", id, err)
		}
	}
	return toID
}

// filterByRange keeps every located entry within the viewer's event range
// plus every unlocated entry. If the viewer can't be looked up (already
// disconnected) or the zone carries no range limit, every entry passes
// through unfiltered.
func filterByRange(z *zone.Zone, viewerID string, entries []eventlog.Entry) []eventlog.Entry {
	rng := z.Constants.DefaultEventRange
	if rng <= 0 {
		return entries
	}
	viewer, ok := z.Lookup(viewerID)
	if !ok {
		return entries
	}

	rngSq := rng * rng
	out := make([]eventlog.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Location.CauseType == "" || viewer.Position.DistanceSq(e.Location.Position) <= rngSq {
			out = append(out, e)
		}
	}
	return out
}
