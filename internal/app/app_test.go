package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
	"github.com/joseph-ayodele/certificate-verifier/internal/repository"
)

func TestNewWiresSQLiteAndFallback(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", repository.SQLiteDSN(filepath.Join(t.TempDir(), "app.db")))
	t.Setenv("UPLOAD_DIR", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_FALLBACK_ENABLED", "true")

	cfg := common.FromEnv()
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Engine.Mode() != llm.ModeFallback {
		t.Errorf("mode: %s", a.Engine.Mode())
	}
	if a.Processor.Mode() != llm.ModeFallback {
		t.Errorf("processor mode: %s", a.Processor.Mode())
	}
	ids, err := a.Certs.ListIDs(context.Background())
	if err != nil || len(ids) != 0 {
		t.Errorf("fresh db: %v %v", ids, err)
	}
}

func TestNewFailsOnUnreachableDatabase(t *testing.T) {
	cfg := common.FromEnv()
	cfg.Database.Driver = repository.DriverSQLite
	cfg.Database.DSN = repository.SQLiteDSN(filepath.Join(t.TempDir(), "missing", "dir", "app.db"))
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected an error for a database in a missing directory")
	}
}
