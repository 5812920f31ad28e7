package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadZoneManifestParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zone.toml")
	body := `display_name = "Embertide Vale"
navmesh_asset_path = "assets/embertide.navmesh"
spawn_table_path = "spawns.yaml"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := LoadZoneManifest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.DisplayName != "Embertide Vale" {
		t.Fatalf("expected display name to parse, got %q", m.DisplayName)
	}
	if m.SpawnTablePath != "spawns.yaml" {
		t.Fatalf("expected spawn table path to parse, got %q", m.SpawnTablePath)
	}
}

func TestLoadZoneManifestRejectsUnreadableFile(t *testing.T) {
	if _, err := LoadZoneManifest("/nonexistent/zone.toml"); err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}

func TestLoadSpawnTableParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spawns.yaml")
	body := `- label: north-gate
  faction_id: heroes
  x: 10
  y: 0
  z: 5
- label: south-camp
  faction_id: monsters
  x: -10
  y: 0
  z: -5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write spawn table: %v", err)
	}

	entries, err := LoadSpawnTable(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Label != "north-gate" || entries[0].X != 10 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].FactionID != "monsters" {
		t.Fatalf("unexpected second entry faction: %+v", entries[1])
	}
}

func TestLoadSpawnTableRejectsUnreadableFile(t *testing.T) {
	if _, err := LoadSpawnTable("/nonexistent/spawns.yaml"); err == nil {
		t.Fatalf("expected error for missing spawn table")
	}
}
