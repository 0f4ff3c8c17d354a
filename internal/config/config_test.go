package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("QUERY_HYBRID_ALPHA", "")
	t.Setenv("PII_STRATEGY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Fatalf("unexpected chunk defaults: %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.HybridAlpha != 0.5 {
		t.Fatalf("expected default alpha 0.5, got %v", cfg.HybridAlpha)
	}
	if cfg.QueryTopK != 3 {
		t.Fatalf("expected default top k 3, got %d", cfg.QueryTopK)
	}
	if cfg.PIIStrategy != "regex" {
		t.Fatalf("expected default pii strategy regex, got %q", cfg.PIIStrategy)
	}
	if cfg.WeaviateClass != "ComplianceChunk" {
		t.Fatalf("unexpected class default: %q", cfg.WeaviateClass)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "800")
	t.Setenv("QUERY_HYBRID_ALPHA", "0.7")
	t.Setenv("EMBEDDER_BACKEND", "openai")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChunkSize != 800 {
		t.Fatalf("expected chunk size 800, got %d", cfg.ChunkSize)
	}
	if cfg.HybridAlpha != 0.7 {
		t.Fatalf("expected alpha 0.7, got %v", cfg.HybridAlpha)
	}
	if cfg.EmbedderBackend != "openai" {
		t.Fatalf("expected embedder openai, got %q", cfg.EmbedderBackend)
	}
}

func TestLoadFileOverridesWinOverEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "chunk_size: 500\npii_strategy: presidio\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "800")
	t.Setenv("QUERY_TOP_K", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChunkSize != 500 {
		t.Fatalf("expected file override 500, got %d", cfg.ChunkSize)
	}
	if cfg.PIIStrategy != "presidio" {
		t.Fatalf("expected file override presidio, got %q", cfg.PIIStrategy)
	}
	// Keys absent from the file keep their env values.
	if cfg.QueryTopK != 5 {
		t.Fatalf("expected env top k 5, got %d", cfg.QueryTopK)
	}
}

func TestLoadRejectsBrokenConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: [not an int"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
