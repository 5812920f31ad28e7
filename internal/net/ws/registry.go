// Package ws implements the websocket session layer: message dispatch over
// a zone, the disconnect grace-period registry, and resume token
// derivation. The grace registry is Redis-backed so disconnect state
// survives a session-process restart.
package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// GraceRegistry tracks players currently inside their disconnect grace
// window: a network disconnect is lifecycle, not an error, and the grace
// timer gives a reconnecting client a window to resume before the player is
// dropped. Backed by Redis so the grace window survives this process
// restarting underneath a reconnecting client.
type GraceRegistry struct {
	rdb    *redis.Client
	prefix string
}

// NewGraceRegistry wraps an existing go-redis client. prefix namespaces keys
// (e.g. "zonecore:grace:") so multiple zones can share one Redis instance.
func NewGraceRegistry(rdb *redis.Client, prefix string) *GraceRegistry {
	return &GraceRegistry{rdb: rdb, prefix: prefix}
}

func (g *GraceRegistry) key(playerID string) string {
	return g.prefix + playerID
}

// MarkDisconnected starts (or refreshes) the grace window for playerID,
// recording resumeToken so a reconnecting session can validate the client
// actually owns the in-grace session.
func (g *GraceRegistry) MarkDisconnected(ctx context.Context, playerID string, grace time.Duration, resumeToken []byte) error {
	if g == nil || g.rdb == nil {
		return nil
	}
	if err := g.rdb.Set(ctx, g.key(playerID), resumeToken, grace).Err(); err != nil {
		return fmt.Errorf("ws: mark disconnected %s: %w", playerID, err)
	}
	return nil
}

// ErrNoGrace indicates the player has no active (or already-expired) grace
// window.
var ErrNoGrace = errors.New("ws: no active grace window")

// ResumeToken returns the resume token recorded for playerID, or ErrNoGrace
// if the window has expired or was never started.
func (g *GraceRegistry) ResumeToken(ctx context.Context, playerID string) ([]byte, error) {
	if g == nil || g.rdb == nil {
		return nil, ErrNoGrace
	}
	val, err := g.rdb.Get(ctx, g.key(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoGrace
	}
	if err != nil {
		return nil, fmt.Errorf("ws: read grace token %s: %w", playerID, err)
	}
	return val, nil
}

// ClearGrace ends the grace window, e.g. once a reconnect has been accepted
// or the grace period's mob cleanup has run.
func (g *GraceRegistry) ClearGrace(ctx context.Context, playerID string) error {
	if g == nil || g.rdb == nil {
		return nil
	}
	if err := g.rdb.Del(ctx, g.key(playerID)).Err(); err != nil {
		return fmt.Errorf("ws: clear grace %s: %w", playerID, err)
	}
	return nil
}
