package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/store/storetest"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests.
// Without Docker or TEST_DB_HOST the PostgreSQL tests are skipped.
func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	ctx := context.Background()
	if err := setupTestDatabase(ctx); err != nil {
		fmt.Printf("PostgreSQL store tests disabled: %v\n", err)
		testDB = nil
	}

	code := m.Run()

	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}

	os.Exit(code)
}

func setupTestDatabase(ctx context.Context) error {
	// Check if we should use an external database (for CI or local development)
	dsn, err := externalDSN()
	if dsn == "" {
		dsn, err = startContainer(ctx)
	}
	if err != nil {
		return err
	}

	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := store.Migrate(db); err != nil {
		return err
	}

	testDB = db
	return nil
}

func externalDSN() (string, error) {
	dbHost := os.Getenv("TEST_DB_HOST")
	if dbHost == "" {
		return "", nil
	}

	dbPort := envOr("TEST_DB_PORT", "5432")
	dbUser := envOr("TEST_DB_USER", "postgres")
	dbPassword := envOr("TEST_DB_PASSWORD", "postgres")
	dbName := envOr("TEST_DB_NAME", "test_db")

	fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func startContainer(ctx context.Context) (dsn string, err error) {
	// testcontainers panics when no Docker daemon can be found
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to start PostgreSQL container: %v", r)
		}
	}()

	pgContainer, err = postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", fmt.Errorf("failed to get connection string: %w", err)
	}

	fmt.Printf("Started PostgreSQL container\n")
	return dsn, nil
}

// initPGTestDB wraps each test in a transaction that is rolled back afterwards
func initPGTestDB(t *testing.T) store.Store {
	tx := testDB.Begin()
	require.NotNil(t, tx)
	require.NoError(t, tx.Error)

	t.Cleanup(func() {
		tx.Rollback()
	})

	return store.NewPGStore(tx)
}

// TestPostgreSQLStore runs all store tests against PostgreSQL
func TestPostgreSQLStore(t *testing.T) {
	if testDB == nil {
		t.Skip("Test database not available")
	}

	storetest.RunStoreTests(t, initPGTestDB)
}
