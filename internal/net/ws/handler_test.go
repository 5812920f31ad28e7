package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"zonecore/server/internal/ability"
	"zonecore/server/internal/collision"
	"zonecore/server/internal/config"
	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/internal/navmesh"
	"zonecore/server/internal/net/proto"
	"zonecore/server/internal/stats"
	"zonecore/server/internal/zone"
	"zonecore/server/logging"
)

func newTestHandler(t *testing.T) (*Handler, *zone.Zone) {
	t.Helper()
	catalog := ability.Catalog{
		"fireball": model.AbilityDef{
			ID: "fireball", CastTimeMs: 0, OnGCD: true, TargetType: model.TargetEnemy, Range: 50,
			Effects: []model.AbilityEffectDef{{Kind: model.EffectDamage, Amount: 10}},
		},
	}
	z := zone.New(config.Defaults(), navmesh.Fake{}, collision.Fake{}, catalog, eventlog.New(256), logging.NopPublisher{})
	h := NewHandler(HandlerConfig{ZoneID: "zone-1", Zone: z, Pub: logging.NopPublisher{}})
	return h, z
}

func websocketURL(t *testing.T, baseURL, playerID string) string {
	t.Helper()
	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/"
	query := parsed.Query()
	query.Set("id", playerID)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func TestHandleSpawnsNewPlayerIntoZone(t *testing.T) {
	h, z := newTestHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(h.Handle))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, "p1"), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	time.Sleep(20 * time.Millisecond)
	if _, ok := z.Lookup("p1"); !ok {
		t.Fatalf("expected player p1 spawned into zone")
	}
}

func TestSessionDispatchesAbilityUseAndWritesAck(t *testing.T) {
	h, z := newTestHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(h.Handle))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, "p1"), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	time.Sleep(20 * time.Millisecond)

	npc := model.NewMob("npc-1", model.KindNPC)
	npc.FactionID = "monsters"
	npc.HP = model.Resource{Current: 50, Max: 50}
	z.AddMob(npc, stats.BaseStats{Primary: model.PrimaryStats{Strength: 10, Dexterity: 10, Intelligence: 10, Constitution: 10}})

	useMsg := map[string]any{
		"type": "ability_use", "requestId": "r1", "actorId": "p1", "abilityId": "fireball",
		"target": map[string]any{"targetEntityId": "npc-1"},
	}
	raw, _ := json.Marshal(useMsg)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}

	var decoded struct {
		Type     string `json:"type"`
		Accepted bool   `json:"accepted"`
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if decoded.Type != proto.TypeAbilityAck || !decoded.Accepted || decoded.RequestID != "r1" {
		t.Fatalf("unexpected ack payload: %+v", decoded)
	}
}

func TestSessionQueuesMoveInput(t *testing.T) {
	h, z := newTestHandler(t)
	srv := httptest.NewServer(http.HandlerFunc(h.Handle))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, "p1"), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	time.Sleep(20 * time.Millisecond)

	moveMsg := map[string]any{"type": "move", "directionX": 1, "directionZ": 0, "seq": 1, "tick": 0}
	raw, _ := json.Marshal(moveMsg)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	m, ok := z.Lookup("p1")
	if !ok || m.Player == nil {
		t.Fatalf("expected player mob present")
	}
	if len(m.Player.Pending) != 1 {
		t.Fatalf("expected one queued move input, got %d", len(m.Player.Pending))
	}
}
