package persist

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ZoneDefinitionRow is the persisted row backing one zone's static
// definition. Definition is the zone's JSON body (archetypes, ability
// catalog overrides, constants overlay); NavmeshRef is an opaque blob or
// external asset pointer, never interpreted by this core.
type ZoneDefinitionRow struct {
	ZoneID      string
	DisplayName string
	Definition  json.RawMessage
	NavmeshRef  []byte
}

// SpawnPointRow is one entry in a zone's spawn-point table.
type SpawnPointRow struct {
	ID        int64
	ZoneID    string
	Label     string
	X, Y, Z   float64
	FactionID string
}

// ZoneRepo is the repository for zone definitions and their spawn points.
type ZoneRepo struct {
	db *DB
}

// NewZoneRepo constructs a ZoneRepo bound to db.
func NewZoneRepo(db *DB) *ZoneRepo {
	return &ZoneRepo{db: db}
}

// LoadZoneDefinition fetches one zone's definition row. Returns
// (nil, nil) if no row exists for zoneID.
func (r *ZoneRepo) LoadZoneDefinition(ctx context.Context, zoneID string) (*ZoneDefinitionRow, error) {
	var row ZoneDefinitionRow
	err := r.db.Pool.QueryRow(ctx,
		`SELECT zone_id, display_name, definition, navmesh_ref
		 FROM zone_definitions WHERE zone_id = $1`, zoneID,
	).Scan(&row.ZoneID, &row.DisplayName, &row.Definition, &row.NavmeshRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveZoneDefinition upserts a zone definition by zone_id.
func (r *ZoneRepo) SaveZoneDefinition(ctx context.Context, row ZoneDefinitionRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO zone_definitions (zone_id, display_name, definition, navmesh_ref)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (zone_id) DO UPDATE SET
		   display_name = EXCLUDED.display_name,
		   definition = EXCLUDED.definition,
		   navmesh_ref = EXCLUDED.navmesh_ref,
		   updated_at = now()`,
		row.ZoneID, row.DisplayName, row.Definition, row.NavmeshRef,
	)
	return err
}

// ListSpawnPoints loads every spawn point registered for a zone, ordered by
// id for deterministic spawn-point selection across restarts.
func (r *ZoneRepo) ListSpawnPoints(ctx context.Context, zoneID string) ([]SpawnPointRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, zone_id, label, x, y, z, faction_id
		 FROM spawn_points WHERE zone_id = $1 ORDER BY id`, zoneID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SpawnPointRow
	for rows.Next() {
		var sp SpawnPointRow
		if err := rows.Scan(&sp.ID, &sp.ZoneID, &sp.Label, &sp.X, &sp.Y, &sp.Z, &sp.FactionID); err != nil {
			return nil, err
		}
		result = append(result, sp)
	}
	return result, rows.Err()
}

// AddSpawnPoint inserts one spawn point for a zone, storing its assigned id
// in sp.ID.
func (r *ZoneRepo) AddSpawnPoint(ctx context.Context, sp *SpawnPointRow) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO spawn_points (zone_id, label, x, y, z, faction_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		sp.ZoneID, sp.Label, sp.X, sp.Y, sp.Z, sp.FactionID,
	).Scan(&sp.ID)
}

// DeleteZoneDefinition removes a zone definition and (via the migration's
// ON DELETE CASCADE) its spawn points.
func (r *ZoneRepo) DeleteZoneDefinition(ctx context.Context, zoneID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM zone_definitions WHERE zone_id = $1`, zoneID)
	return err
}
