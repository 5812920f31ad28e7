// Command server runs one zonecore process hosting one or more independent
// zones, each on its own fixed-tick loop under a shared errgroup.Group, each
// reachable over its own websocket path. A logging router fans events out to
// a sinks map, HTTP handlers register on a dedicated http.ServeMux, and
// environment variables are read through os.Getenv and config.Load's viper
// overlay — N zone tick loops are supervised
// by golang.org/x/sync's errgroup rather than a single goroutine-plus-channel
// pair.
package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zonecore/server/internal/ability"
	"zonecore/server/internal/ai/script"
	"zonecore/server/internal/collision"
	"zonecore/server/internal/config"
	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/internal/navmesh"
	"zonecore/server/internal/net/ws"
	"zonecore/server/internal/persist"
	"zonecore/server/internal/telemetry"
	"zonecore/server/internal/zone"
	"zonecore/server/logging"
	"zonecore/server/logging/sinks"
)

// snapshotIntervalTicks sets how many ticks elapse between full replicated-state
// broadcasts; every tick still flushes the event log's delta. 20 ticks at
// the default 50ms tick is one keyframe per second.
const snapshotIntervalTicks = 20

func main() {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		stdlog.Fatalf("construct zap logger: %v", err)
	}
	defer zapLogger.Sync()

	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = []string{"console", "zap"}
	available := map[string]logging.Sink{
		"console": sinks.NewConsoleSink(os.Stdout, logConfig.Console),
		"zap":     sinks.NewZapSink(zapLogger),
	}
	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, stdlog.Default(), available)
	if err != nil {
		stdlog.Fatalf("construct logging router: %v", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			stdlog.Printf("close logging router: %v", cerr)
		}
	}()

	promMetrics := telemetry.NewPromMetrics(nil)

	cfg, err := config.Load(os.Getenv("ZONECORE_CONFIG_PATH"))
	if err != nil {
		stdlog.Fatalf("load tick constants: %v", err)
	}

	zoneIDs := strings.Split(os.Getenv("ZONECORE_ZONE_IDS"), ",")
	if len(zoneIDs) == 0 || (len(zoneIDs) == 1 && zoneIDs[0] == "") {
		zoneIDs = []string{"zone-1"}
	}

	repo := connectZoneRepo(zapLogger)

	grace := connectGraceRegistry()
	secret := []byte(os.Getenv("ZONECORE_GRACE_SECRET"))
	if len(secret) == 0 {
		secret = nil
	}

	scriptsDir := os.Getenv("ZONECORE_AI_SCRIPTS_DIR")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promMetrics.Registry(), promhttp.HandlerOpts{}))

	for _, zoneID := range zoneIDs {
		zoneID := strings.TrimSpace(zoneID)
		if zoneID == "" {
			continue
		}

		spawn := resolveSpawnPoint(gctx, zoneID, repo, zapLogger)
		catalog := demoCatalog()
		log := eventlog.New(cfg.EventLogCapacity)

		z := zone.New(cfg, navmesh.Fake{}, collision.Fake{}, catalog, log, router)
		if scriptsDir != "" {
			z.AIScript = script.NewEngine(scriptsDir, zapLogger)
		}

		handler := ws.NewHandler(ws.HandlerConfig{
			ZoneID:     zoneID,
			Zone:       z,
			Grace:      grace,
			Secret:     secret,
			Pub:        router,
			Logger:     stdlog.Default(),
			SpawnPoint: spawn,
		})
		mux.HandleFunc("/ws/"+zoneID, handler.Handle)

		group.Go(func() error {
			runZoneTickLoop(gctx, cfg, zoneID, z, handler, promMetrics)
			return nil
		})
	}

	addr := os.Getenv("ZONECORE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{Addr: addr, Handler: mux}

	group.Go(func() error {
		stdlog.Printf("server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		stdlog.Fatalf("server exited: %v", err)
	}
}

// runZoneTickLoop drives one zone's fixed-tick loop until ctx is cancelled,
// flushing the event log every tick and the full replicated state every
// snapshotIntervalTicks ticks. Each zone runs its own independently ticking
// loop rather than sharing one loop across the whole process.
func runZoneTickLoop(ctx context.Context, cfg config.Constants, zoneID string, z *zone.Zone, handler *ws.Handler, metrics *telemetry.PromMetrics) {
	ticker := time.NewTicker(cfg.TickDuration())
	defer ticker.Stop()

	var lastEventID uint64
	var tickCount uint64

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			z.FixedTick(now.UnixMilli())
			tickCount++

			sessions := handler.Sessions()
			lastEventID = ws.BroadcastEvents(z, lastEventID, sessions, stdlog.Default())
			if tickCount%snapshotIntervalTicks == 0 {
				ws.BroadcastSnapshot(z, sessions, stdlog.Default())
			}
			metrics.Store(zoneID+"_tick", tickCount)
			metrics.Store(zoneID+"_connected_sessions", uint64(len(sessions)))
		}
	}
}

// connectZoneRepo opens an optional Postgres-backed zone repository when
// ZONECORE_DB_DSN is set, migrating it up first. A nil return means every
// zone falls back to the origin as its spawn point unless a local YAML
// spawn table is configured instead (see resolveSpawnPoint).
func connectZoneRepo(log *zap.Logger) *persist.ZoneRepo {
	dsn := os.Getenv("ZONECORE_DB_DSN")
	if dsn == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, persist.Config{DSN: dsn}, log)
	if err != nil {
		stdlog.Printf("persist: connect failed, spawn points default to origin: %v", err)
		return nil
	}
	if err := persist.Migrate(ctx, db); err != nil {
		stdlog.Printf("persist: migrate failed, spawn points default to origin: %v", err)
		return nil
	}
	return persist.NewZoneRepo(db)
}

// connectGraceRegistry constructs a disconnect-grace registry backed by
// Redis when ZONECORE_REDIS_ADDR is set. A nil registry disables resume
// entirely (ws.Handler and ws.Serve are both nil-safe on Grace).
func connectGraceRegistry() *ws.GraceRegistry {
	addr := os.Getenv("ZONECORE_REDIS_ADDR")
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return ws.NewGraceRegistry(rdb, "zonecore:grace:")
}

// resolveSpawnPoint picks a zone's first spawn point, preferring the
// Postgres-backed table when repo is non-nil, falling back to a local YAML
// spawn table (ZONECORE_SPAWN_TABLE_PATH) and finally to the origin.
func resolveSpawnPoint(ctx context.Context, zoneID string, repo *persist.ZoneRepo, log *zap.Logger) model.Vec3 {
	if repo != nil {
		points, err := repo.ListSpawnPoints(ctx, zoneID)
		if err != nil {
			log.Warn("list spawn points failed", zap.String("zone", zoneID), zap.Error(err))
		} else if len(points) > 0 {
			p := points[0]
			return model.Vec3{X: p.X, Y: p.Y, Z: p.Z}
		}
	}

	if path := os.Getenv("ZONECORE_SPAWN_TABLE_PATH"); path != "" {
		entries, err := config.LoadSpawnTable(path)
		if err != nil {
			log.Warn("load local spawn table failed", zap.String("zone", zoneID), zap.Error(err))
		} else if len(entries) > 0 {
			e := entries[0]
			return model.Vec3{X: e.X, Y: e.Y, Z: e.Z}
		}
	}

	return model.Vec3{}
}

// demoCatalog is a small built-in ability set so the server is runnable
// without an external zone-definition database wiring a catalog in. A real
// deployment loads its catalog from persist.ZoneDefinitionRow.Definition
// instead.
func demoCatalog() ability.Catalog {
	return ability.Catalog{
		"fireball": model.AbilityDef{
			ID:         "fireball",
			CastTimeMs: 1200,
			OnGCD:      true,
			CooldownMs: 4000,
			Range:      40,
			TargetType: model.TargetEnemy,
			Cost:       model.ResourceCost{Mana: 15},
			Effects: []model.AbilityEffectDef{
				{Kind: model.EffectDamage, Amount: 35},
			},
		},
		"heal": {
			ID:         "heal",
			CastTimeMs: 1500,
			OnGCD:      true,
			CooldownMs: 6000,
			Range:      30,
			TargetType: model.TargetAlly,
			Cost:       model.ResourceCost{Mana: 20},
			Effects: []model.AbilityEffectDef{
				{Kind: model.EffectHeal, Amount: 40},
			},
		},
		"strike": {
			ID:         "strike",
			CastTimeMs: 0,
			OnGCD:      true,
			CooldownMs: 1000,
			Range:      5,
			TargetType: model.TargetEnemy,
			Effects: []model.AbilityEffectDef{
				{Kind: model.EffectDamage, Amount: 12},
			},
		},
	}
}
