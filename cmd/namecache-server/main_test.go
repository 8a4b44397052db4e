package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bcrosbie/namecache/internal/authority"
	"github.com/bcrosbie/namecache/internal/config"
	"github.com/bcrosbie/namecache/internal/store"
	"go.uber.org/zap"
)

func TestBuildStoreDrivers(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		DatabasePath: filepath.Join(dir, "names.db"),
		DataFile:     filepath.Join(dir, "names.json"),
	}

	cfg.StoreDriver = "sqlite"
	if built, err := buildStore(cfg); err != nil {
		t.Fatalf("sqlite: %v", err)
	} else if _, ok := built.(*store.SQLiteStore); !ok {
		t.Fatalf("expected SQLiteStore, got %T", built)
	}

	cfg.StoreDriver = "FILE"
	if built, err := buildStore(cfg); err != nil {
		t.Fatalf("file: %v", err)
	} else if _, ok := built.(*store.FileStore); !ok {
		t.Fatalf("expected FileStore, got %T", built)
	}

	cfg.StoreDriver = "mysql"
	if _, err := buildStore(cfg); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestBuildResolverWrapsRetries(t *testing.T) {
	cfg := config.Config{AuthorityURL: "https://authority.example", AuthorityTimeout: time.Second}

	plain, err := buildResolver(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := plain.(*authority.Client); !ok {
		t.Fatalf("expected bare client, got %T", plain)
	}

	cfg.AuthorityRetries = 3
	retrying, err := buildResolver(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := retrying.(*authority.Retrying); !ok {
		t.Fatalf("expected retrying resolver, got %T", retrying)
	}

	cfg.AuthorityURL = "not a url"
	if _, err := buildResolver(cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected error for relative authority url")
	}
}
