package internal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nordlys/metawatch/internal/engine"
	"github.com/nordlys/metawatch/internal/models"
	"github.com/nordlys/metawatch/internal/testutil"
)

func TestRunDeliversEventCallbacks(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.LogLevel = slog.LevelError
	cfg.Monitor.Path = t.TempDir()
	cfg.Schemas.PackagedDir = testutil.SchemaDir(t)

	var mu sync.Mutex
	var seen []string
	cb := func(kind engine.EventKind, path string) {
		mu.Lock()
		seen = append(seen, path)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, WithConfig(cfg), WithEventCallback(cb)) }()
	time.Sleep(150 * time.Millisecond)

	projectDir := filepath.Join(cfg.Monitor.Path, "p_entry")
	if err := os.Mkdir(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}

	testutil.Eventually(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range seen {
			if filepath.Base(p) == "p_entry" {
				return true
			}
		}
		return false
	})

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	doc := filepath.Join(projectDir, models.MetadataDir, models.KindProjectDescriptive.FileName())
	if _, err := os.Stat(doc); err != nil {
		t.Fatalf("project document not generated: %v", err)
	}
}
