package database

import (
	"testing"

	"github.com/ARamos00/nursery-tracker/internal/domain"
)

func TestSeedSyncCreatesDataAndNoopOnSecondRun(t *testing.T) {
	db := newSQLiteDB(t)
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	report1, err := SeedSync(db, "https://hooks.example.com/dev")
	if err != nil {
		t.Fatalf("seed sync first run: %v", err)
	}
	if report1.Noop {
		t.Fatalf("expected first seed run to perform changes: %+v", report1)
	}
	if report1.CreatedPlants == 0 || report1.CreatedEndpoints != 1 {
		t.Fatalf("expected created plants and one endpoint: %+v", report1)
	}

	var ep domain.WebhookEndpoint
	if err := db.First(&ep).Error; err != nil {
		t.Fatalf("load seeded endpoint: %v", err)
	}
	if ep.Secret == "" || ep.SecretLast4 == "" {
		t.Fatalf("seeded endpoint must carry a generated secret: %+v", ep)
	}

	report2, err := SeedSync(db, "https://hooks.example.com/dev")
	if err != nil {
		t.Fatalf("seed sync second run: %v", err)
	}
	if !report2.Noop {
		t.Fatalf("expected noop on second seed run: %+v", report2)
	}
}

func TestSeedSyncWithoutReceiverSkipsEndpoint(t *testing.T) {
	db := newSQLiteDB(t)
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	report, err := SeedSync(db, "")
	if err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	if report.CreatedEndpoints != 0 {
		t.Fatalf("expected no endpoint without a receiver URL: %+v", report)
	}
}

func TestSeedSyncFailureWhenDBClosed(t *testing.T) {
	db := newSQLiteDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close sql db: %v", err)
	}

	if _, err := SeedSync(db, ""); err == nil {
		t.Fatal("expected seed sync error on closed database")
	}
}
