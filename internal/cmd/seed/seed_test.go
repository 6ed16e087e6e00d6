package seed

import (
	"bytes"
	"context"
	"flag"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sheetservice "github.com/louisbranch/initiative/internal/services/encounter/api/grpc/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/dice"
	encountersqlite "github.com/louisbranch/initiative/internal/services/encounter/storage/sqlite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != "localhost:8091" {
		t.Fatalf("expected default grpc addr, got %q", cfg.GRPCAddr)
	}
	if cfg.Seed != 0 || cfg.File != "" {
		t.Fatalf("expected empty seed and file, got %+v", cfg)
	}
}

func TestParseConfigFlags(t *testing.T) {
	t.Setenv("INITIATIVE_SEED_GRPC_ADDR", "env-grpc")
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-sheet-id", "demo", "-seed", "42", "-v"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != "env-grpc" || cfg.SheetID != "demo" || cfg.Seed != 42 || !cfg.Verbose {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestDemoSheetIsReproducible(t *testing.T) {
	first, err := DemoSheet("demo", "camp-1", dice.NewRoller(42))
	if err != nil {
		t.Fatalf("demo sheet: %v", err)
	}
	second, err := DemoSheet("demo", "camp-1", dice.NewRoller(42))
	if err != nil {
		t.Fatalf("demo sheet: %v", err)
	}
	if len(first.Rows) != len(demoParty) {
		t.Fatalf("rows = %d, want %d", len(first.Rows), len(demoParty))
	}
	for i := range first.Rows {
		a, b := first.Rows[i], second.Rows[i]
		if a.Name != b.Name || a.Initiative != b.Initiative {
			t.Fatalf("row %d differs: %s/%d vs %s/%d", i, a.Name, a.Initiative, b.Name, b.Initiative)
		}
		if !a.HasInitiative() {
			t.Fatalf("row %s has no initiative", a.Name)
		}
		if a.Index != i {
			t.Fatalf("row %s index = %d, want %d", a.Name, a.Index, i)
		}
		if i > 0 && first.Rows[i-1].Initiative < a.Initiative {
			t.Fatalf("rows not in initiative order: %d before %d", first.Rows[i-1].Initiative, a.Initiative)
		}
		if a.Type == combatant.KindMonster {
			if hp := *a.Health.Value; hp < 2 || hp > 12 {
				t.Fatalf("%s health = %d, want 2..12", a.Name, hp)
			}
		}
	}
}

func TestBuildSheetFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.json")
	body := `{"id":"from-file","rows":[{"id":"a","name":"Aria","type":"player","initiative":12,"conditions":[]}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write sheet file: %v", err)
	}

	record, err := buildSheet(Config{File: path})
	if err != nil {
		t.Fatalf("build sheet: %v", err)
	}
	if record.ID != "from-file" || len(record.Rows) != 1 || record.Round != 1 {
		t.Fatalf("sheet = %+v", record)
	}

	record, err = buildSheet(Config{File: path, SheetID: "override"})
	if err != nil {
		t.Fatalf("build sheet: %v", err)
	}
	if record.ID != "override" {
		t.Fatalf("id = %q, want override", record.ID)
	}
}

func TestRunCreatesSheet(t *testing.T) {
	store, err := encountersqlite.Open(filepath.Join(t.TempDir(), "initiative.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := grpc.NewServer()
	healthServer := health.NewServer()
	sheetservice.RegisterSheetServiceServer(server, sheetservice.NewService(store))
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(sheetservice.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	var out bytes.Buffer
	err = Run(context.Background(), Config{GRPCAddr: listener.Addr().String(), SheetID: "demo", Seed: 7}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "created sheet demo with 6 combatants") {
		t.Fatalf("output = %q", out.String())
	}

	stored, err := store.GetSheet(context.Background(), "demo")
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if len(stored.Rows) != len(demoParty) {
		t.Fatalf("stored rows = %d, want %d", len(stored.Rows), len(demoParty))
	}
}
