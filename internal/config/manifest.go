package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ZoneManifest is the per-zone static metadata sidecar: the part of a
// zone's persisted state that plausibly lives beside the binary rather than
// in the external zone-definition database. Parsed with BurntSushi/toml,
// matching the tick-constants manifest this package already reads via Load.
type ZoneManifest struct {
	DisplayName     string `toml:"display_name"`
	NavmeshAssetPath string `toml:"navmesh_asset_path"`
	SpawnTablePath  string `toml:"spawn_table_path"`
}

// LoadZoneManifest reads a zone manifest sidecar from path.
func LoadZoneManifest(path string) (ZoneManifest, error) {
	var m ZoneManifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return ZoneManifest{}, fmt.Errorf("config: decode zone manifest %s: %w", path, err)
	}
	return m, nil
}

// SpawnPointEntry is one row of a zone's local spawn-point table, the
// file-backed counterpart to internal/persist.SpawnPointRow for zones run
// without a Postgres-backed zone-definition store (e.g. local/dev, or a
// zone whose manifest simply doesn't name a persist-backed zone id).
type SpawnPointEntry struct {
	Label     string  `yaml:"label"`
	FactionID string  `yaml:"faction_id"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Z         float64 `yaml:"z"`
}

// LoadSpawnTable reads a YAML spawn-point table from path, named by a
// ZoneManifest's SpawnTablePath. Decoded with yaml.v3 directly (rather than
// through viper's own file reader) so the table's shape is a plain Go
// struct instead of viper's untyped settings map.
func LoadSpawnTable(path string) ([]SpawnPointEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read spawn table %s: %w", path, err)
	}
	var entries []SpawnPointEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("config: parse spawn table %s: %w", path, err)
	}
	return entries, nil
}
