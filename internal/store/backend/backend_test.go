package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/4xmen/peyvand/pkg/config"
)

func TestOpenFallsBackToMemory(t *testing.T) {
	s := Open(context.Background(), &config.Config{StoreTimeout: time.Second}, zap.NewNop())
	defer s.Close(context.Background())
	assert.Equal(t, "memory", s.Backend())
}

func TestOpenSQLite(t *testing.T) {
	cfg := &config.Config{
		DatabasePath: filepath.Join(t.TempDir(), "peyvand.db"),
		StoreTimeout: 5 * time.Second,
	}
	s := Open(context.Background(), cfg, zap.NewNop())
	defer s.Close(context.Background())
	assert.Equal(t, "sqlite", s.Backend())
}

func TestOpenSkipsUnreachableBackends(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL:  "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1",
		DatabasePath: filepath.Join(t.TempDir(), "missing-dir", "peyvand.db"),
		StoreTimeout: 2 * time.Second,
	}
	s := Open(context.Background(), cfg, zap.NewNop())
	defer s.Close(context.Background())
	assert.Equal(t, "memory", s.Backend())
}
