package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/uct-pipeline/internal/config"
	"github.com/signalsfoundry/uct-pipeline/internal/logging"
)

func TestRunBatchSmoke(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uct.duckdb")
	db, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE observations (
		sat_no INTEGER, ob_time TIMESTAMP, sensor_name VARCHAR,
		ra DOUBLE, declination DOUBLE, azimuth DOUBLE, elevation DOUBLE)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := db.Exec(`INSERT INTO observations VALUES (?, ?, 'S', 10, 5, 100, 40)`,
			25544, base.Add(time.Duration(i)*20*time.Second)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	db.Close()

	cfg := config.Default()
	cfg.Store.DBPath = path
	log := logging.New(logging.Config{Level: "warn"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := run(ctx, cfg, log, prometheus.NewRegistry()); err != nil {
		t.Fatalf("run: %v", err)
	}

	db, err = sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("reopen duckdb: %v", err)
	}
	defer db.Close()
	var tracks int
	if err := db.QueryRow(`SELECT count(*) FROM tracks`).Scan(&tracks); err != nil {
		t.Fatalf("count tracks: %v", err)
	}
	if tracks < 1 {
		t.Fatalf("tracks = %d, want at least 1", tracks)
	}
}
