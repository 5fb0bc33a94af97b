// Package integration runs the storefront against a real PostgreSQL started
// with testcontainers. The tests are skipped with -short.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kctmenswear/storefront/internal/infrastructure/migration"
)

var (
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB is a migrated storefront database
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
	t     *testing.T
}

// NewSharedTestDB returns a connection to a package-wide container, started
// and migrated on first use. Tables are truncated before returning.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("kct_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("storefront"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start PostgreSQL container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		_, sqlDB := connectToDatabase(t, dsn)
		runMigrations(t, sqlDB)
		_ = sqlDB.Close()

		sharedContainer = container
		sharedContainerDSN = dsn
	}

	db, sqlDB := connectToDatabase(t, sharedContainerDSN)
	tdb := &TestDB{DB: db, SqlDB: sqlDB, DSN: sharedContainerDSN, t: t}
	t.Cleanup(func() { _ = sqlDB.Close() })

	tdb.CleanTables()
	return tdb
}

// CleanupSharedContainer terminates the shared container. Call it from TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}

// CleanTables truncates every table except schema_migrations
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate %s", table)
	}
}

// SeedVariant inserts an active product with one variant and returns the variant ID
func (tdb *TestDB) SeedVariant(name string, price string, inventory int) uuid.UUID {
	tdb.t.Helper()

	productID, variantID := uuid.New(), uuid.New()
	require.NoError(tdb.t, tdb.DB.Exec(`
		INSERT INTO products (id, name, category, subcategory, sku, status)
		VALUES (?, ?, 'Suits', 'Two-Piece', ?, 'active')
	`, productID, name, "SKU-"+productID.String()[:8]).Error)
	require.NoError(tdb.t, tdb.DB.Exec(`
		INSERT INTO product_variants (id, product_id, title, sku, size, price, inventory_count)
		VALUES (?, ?, ?, ?, '40R', ?, ?)
	`, variantID, productID, name+" / 40R", "VAR-"+variantID.String()[:8], price, inventory).Error)
	return variantID
}

// InventoryCount reads a variant's inventory_count
func (tdb *TestDB) InventoryCount(variantID uuid.UUID) int {
	tdb.t.Helper()
	var n int
	require.NoError(tdb.t, tdb.DB.Raw(
		"SELECT inventory_count FROM product_variants WHERE id = ?", variantID).Scan(&n).Error)
	return n
}

// SeedUser inserts an auth user with an unconfirmed email
func (tdb *TestDB) SeedUser(email string) uuid.UUID {
	tdb.t.Helper()
	id := uuid.New()
	require.NoError(tdb.t, tdb.DB.Exec(
		"INSERT INTO users (id, email) VALUES (?, ?)", id, email).Error)
	return id
}

func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, sqlDB
}

// runMigrations applies the embedded migrations
func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	m, err := migration.New(sqlDB, "", zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}
