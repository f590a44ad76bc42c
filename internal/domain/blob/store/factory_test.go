package store

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	platformerrors "imgconv-server-go/internal/platform/errors"
)

func TestFactoryMemory(t *testing.T) {
	s, err := New(Config{}, Dependencies{})
	if err != nil {
		t.Fatalf("New memory store: %v", err)
	}
	defer s.Close()
}

func TestFactorySQLite(t *testing.T) {
	if _, err := New(Config{Driver: DriverSQLite}, Dependencies{}); err == nil {
		t.Fatalf("expected error without database handle")
	}

	s, err := New(Config{Driver: DriverSQLite, TTL: time.Second}, Dependencies{SQLiteDB: openTestDB(t)})
	if err != nil {
		t.Fatalf("New sqlite store: %v", err)
	}
	defer s.Close()
}

func TestFactoryRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	s, err := New(Config{
		Driver: DriverRedis,
		TTL:    time.Second,
		Redis:  &RedisConfig{Addr: mr.Addr()},
	}, Dependencies{})
	if err != nil {
		t.Fatalf("New redis store: %v", err)
	}
	defer s.Close()

	if _, err := New(Config{Driver: DriverRedis}, Dependencies{}); err == nil {
		t.Fatalf("expected error for missing redis config")
	}
}

func TestFactoryUnsupported(t *testing.T) {
	_, err := New(Config{Driver: "unknown"}, Dependencies{})
	if !platformerrors.IsKind(err, platformerrors.KindConfig) {
		t.Fatalf("expected config error for unsupported driver, got %v", err)
	}
}
