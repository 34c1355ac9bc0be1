package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gochain/ledgernode/pkg/nodeerr"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cfg != *Default() {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.json")
	want := Default()
	want.AdjustEvery = 42

	if err := Save(path, want); err != nil {
		t.Fatalf("unexpected error saving: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	if *got != *want {
		t.Fatalf("expected round-tripped config to match, got %+v want %+v", got, want)
	}
}

func TestLoadCorruptFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("unexpected error writing corrupt file: %v", err)
	}
	_, err := Load(path)
	if !errors.Is(err, nodeerr.Fatal) {
		t.Fatalf("expected Fatal error for corrupt config, got %v", err)
	}
}
