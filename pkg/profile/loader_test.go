package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caseguard/caseguard/pkg/risk"
	"github.com/caseguard/caseguard/pkg/routing"
)

const studioYAML = `name: studio
dimensions:
  - key: CHAIN_OF_TITLE
    label: Chain of Title
  - key: TALENT_CONSENT
    label: Talent Consent
routes:
  - dimension: CHAIN_OF_TITLE
    level: HIGH
    reviewer: Head of Business Affairs
  - dimension: TALENT_CONSENT
    level: CRITICAL
    reviewer: General Counsel
`

func TestParsePreset(t *testing.T) {
	p, err := ParsePreset([]byte(studioYAML), "fallback")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "studio" {
		t.Fatalf("expected declared name, got %q", p.Name)
	}
	if len(p.Dimensions) != 2 || len(p.Routing) != 2 {
		t.Fatalf("unexpected preset %+v", p)
	}
	if p.Routing[0].Level != risk.LevelHigh || p.Routing[0].Reviewer != "Head of Business Affairs" {
		t.Fatalf("unexpected route %+v", p.Routing[0])
	}
}

func TestParsePresetFallbackName(t *testing.T) {
	p, err := ParsePreset([]byte("dimensions:\n  - key: X\n    label: X\n"), "MyPack")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "mypack" {
		t.Fatalf("expected lowercased fallback name, got %q", p.Name)
	}
}

func TestParsePresetRejectsUndeclaredRouteDimension(t *testing.T) {
	bad := `name: x
dimensions:
  - key: A
    label: A
routes:
  - dimension: B
    level: LOW
    reviewer: Someone
`
	if _, err := ParsePreset([]byte(bad), ""); err == nil {
		t.Fatal("expected error for undeclared route dimension")
	}
}

func TestParsePresetRejectsBadLevel(t *testing.T) {
	bad := `name: x
dimensions:
  - key: A
    label: A
routes:
  - dimension: A
    level: SEVERE
    reviewer: Someone
`
	if _, err := ParsePreset([]byte(bad), ""); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestParsePresetRejectsEmptyDimensionKey(t *testing.T) {
	if _, err := ParsePreset([]byte("name: x\ndimensions:\n  - label: nameless\n"), ""); err == nil {
		t.Fatal("expected error for empty dimension key")
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "preset_studio.yaml"), []byte(studioYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	// no declared name; the file stem (minus the preset_ prefix) is used
	anon := "dimensions:\n  - key: VENDOR_RISK\n    label: Vendor Risk\n"
	if err := os.WriteFile(filepath.Join(dir, "preset_vendors.yaml"), []byte(anon), 0o600); err != nil {
		t.Fatal(err)
	}
	// non-matching files are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.yaml"), []byte("name: ignored\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := r.LoadAll(dir); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"studio", "vendors"} {
		if _, err := r.Build(name); err != nil {
			t.Fatalf("preset %q not loaded: %v", name, err)
		}
	}
	if _, err := r.Build("ignored"); err == nil {
		t.Fatal("non-preset file must not be loaded")
	}

	p, err := r.Build("studio")
	if err != nil {
		t.Fatal(err)
	}
	table := routing.NewTable()
	table.Merge(p.Routing)
	if got := table.Route(p.Dimensions[0], risk.LevelHigh); got != "Head of Business Affairs" {
		t.Fatalf("unexpected loaded route %q", got)
	}
}
