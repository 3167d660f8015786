//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway PostgreSQL container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "rules",
			"POSTGRES_PASSWORD": "rules",
			"POSTGRES_DB":       "rules",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	return fmt.Sprintf("postgres://rules:rules@%s:%s/rules?sslmode=disable", host, port.Port())
}

func TestPostgresRepository(t *testing.T) {
	dsn := startPostgres(t)

	n := 0
	runRepositoryTests(t, func(t *testing.T) backend {
		ctx := context.Background()
		repo, err := NewPostgresRepository(ctx, DefaultPostgresConfig(dsn))
		if err != nil {
			t.Fatalf("NewPostgresRepository() error = %v", err)
		}
		// Subtests share the database; start each one from empty tables.
		n++
		if _, err := repo.DB().ExecContext(ctx, "TRUNCATE rules, rule_versions, rule_groups"); err != nil {
			t.Fatalf("truncate %d: %v", n, err)
		}
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestMigrator_UpDown(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	db, err := OpenPostgres(ctx, DefaultPostgresConfig(dsn))
	if err != nil {
		t.Fatal(err)
	}
	migrator, err := NewMigrator(db, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer migrator.Close()

	version, _, err := migrator.Version()
	if err != nil {
		t.Fatal(err)
	}
	if version != 0 {
		t.Errorf("initial version = %d, want 0", version)
	}

	if err := migrator.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("second Up() error = %v", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 || dirty {
		t.Errorf("Version() = %d dirty=%v, want 2 clean", version, dirty)
	}

	if err := migrator.Down(1); err != nil {
		t.Fatalf("Down(1) error = %v", err)
	}
	version, _, err = migrator.Version()
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 {
		t.Errorf("Version() after Down(1) = %d, want 1", version)
	}
}
