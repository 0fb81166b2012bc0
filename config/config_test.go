package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Session.Backend != "memory" || cfg.Session.TTL != 2*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Storage.MaxFileBytes != 10<<20 || cfg.Database.MaxConns != 10 {
		t.Fatalf("unexpected numeric defaults: %+v", cfg)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
http:
  addr: ":9090"
database:
  url: postgres://app:secret@db:5432/disputes
llm:
  model: gpt-4o
session:
  backend: redis
  ttl: 30m
  redis_url: redis://cache:6379/0
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DISPUTEAI_AUTH_JWT_SECRET", "from-env")
	t.Setenv("DISPUTEAI_LLM_MODEL", "gpt-4.1")
	t.Setenv("DISPUTEAI_EVENTS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Auth.JWTSecret != "from-env" || cfg.LLM.Model != "gpt-4.1" {
		t.Fatalf("env must override file: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers); diff != "" {
		t.Fatalf("brokers mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestValidateServe(t *testing.T) {
	cfg := Config{Session: SessionConfig{Backend: "redis"}}
	err := cfg.ValidateServe()
	if !errors.Is(err, ErrMissingSetting) {
		t.Fatalf("expected ErrMissingSetting, got %v", err)
	}

	cfg = Config{
		Database: DatabaseConfig{URL: "postgres://x"},
		Auth:     AuthConfig{JWTSecret: "s"},
		LLM:      LLMConfig{APIKey: "k"},
		Session:  SessionConfig{Backend: "memory"},
	}
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Session.Backend = "disk"
	if err := cfg.ValidateServe(); err == nil {
		t.Fatal("expected error for unknown session backend")
	}
}

func TestMasked(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{URL: "postgres://app:secret@db:5432/disputes"},
		Auth:     AuthConfig{JWTSecret: "jwt"},
		LLM:      LLMConfig{APIKey: "sk-123"},
		Storage:  StorageConfig{SecretKey: "minio-secret"},
		Session:  SessionConfig{RedisURL: "redis://cache:6379/0"},
	}

	out, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Config
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Database.URL != "postgres://app:********@db:5432/disputes" {
		t.Fatalf("unexpected masked url %q", back.Database.URL)
	}
	if back.Auth.JWTSecret != masked || back.LLM.APIKey != masked || back.Storage.SecretKey != masked {
		t.Fatalf("secrets leaked: %+v", back)
	}
	if back.Session.RedisURL != "redis://cache:6379/0" {
		t.Fatalf("url without password must be unchanged, got %q", back.Session.RedisURL)
	}
	if cfg.Auth.JWTSecret != "jwt" {
		t.Fatal("Masked must not modify the receiver")
	}
}
