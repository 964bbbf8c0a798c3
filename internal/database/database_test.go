package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"devconnector/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.Len(t, all, 2)
	assert.Equal(t, "000001_create_users", all[0].String())
	assert.Equal(t, "000002_create_posts", all[1].String())
	for _, m := range all {
		assert.NotEmpty(t, m.UpScript)
		assert.NotEmpty(t, m.DownScript)
	}
	assert.Nil(t, GetMigrationByVersion(99))
	assert.Equal(t, "create_posts", GetMigrationByVersion(2).Name)
}

func TestLoadMigrations_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"missing down script", fstest.MapFS{
			"m/000001_a.up.sql": {Data: []byte("SELECT 1;")},
		}},
		{"bad version", fstest.MapFS{
			"m/abc_a.up.sql":   {Data: []byte("SELECT 1;")},
			"m/abc_a.down.sql": {Data: []byte("SELECT 1;")},
		}},
		{"missing name", fstest.MapFS{
			"m/000001.up.sql":   {Data: []byte("SELECT 1;")},
			"m/000001.down.sql": {Data: []byte("SELECT 1;")},
		}},
		{"duplicate version", fstest.MapFS{
			"m/000001_a.up.sql":   {Data: []byte("SELECT 1;")},
			"m/000001_a.down.sql": {Data: []byte("SELECT 1;")},
			"m/01_b.up.sql":       {Data: []byte("SELECT 1;")},
			"m/01_b.down.sql":     {Data: []byte("SELECT 1;")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrations(tt.fsys, "m")
			assert.Error(t, err)
		})
	}
}

func TestRunMigrations_AppliesOnceAndRollsBack(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db))
	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("posts"))

	// second run is a no-op
	require.NoError(t, RunMigrations(ctx, db))

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)

	require.NoError(t, RollbackMigration(ctx, db, 2))
	assert.False(t, db.Migrator().HasTable("posts"))
	assert.True(t, db.Migrator().HasTable("users"))

	assert.Error(t, RollbackMigration(ctx, db, 2), "already rolled back")
	assert.Error(t, RollbackMigration(ctx, db, 42), "unknown version")
}

func TestRunMigrations_RejectsUnknownAppliedVersions(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, db.Create(&MigrationLog{Version: 7, Name: "from_the_future"}).Error)

	err := RunMigrations(ctx, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name            string
		cfg             config.Config
		runSQL, runAuto bool
		wantErr         bool
	}{
		{"hybrid in development", config.Config{Env: "development", StoreDriver: config.StoreDriverPostgres}, true, true, false},
		{"hybrid in production", config.Config{Env: "production", StoreDriver: config.StoreDriverPostgres}, true, false, false},
		{"sql only", config.Config{DBSchemaMode: SchemaModeSQL, StoreDriver: config.StoreDriverPostgres}, true, false, false},
		{"auto in production refused", config.Config{Env: "prod", DBSchemaMode: SchemaModeAuto, StoreDriver: config.StoreDriverPostgres}, false, false, true},
		{"auto in production allowed", config.Config{Env: "prod", DBSchemaMode: SchemaModeAuto, StoreDriver: config.StoreDriverPostgres, DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"sqlite always auto", config.Config{Env: "production", DBSchemaMode: SchemaModeSQL, StoreDriver: config.StoreDriverSQLite}, false, true, false},
		{"unknown mode", config.Config{DBSchemaMode: "yolo", StoreDriver: config.StoreDriverPostgres}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, runSQL)
			assert.Equal(t, tt.runAuto, runAuto)
		})
	}
}

func TestGetSchemaStatus_ReportsPending(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()
	cfg := &config.Config{Env: "production", StoreDriver: config.StoreDriverPostgres, DBSchemaMode: SchemaModeSQL}

	status, err := GetSchemaStatus(ctx, db, cfg)
	require.NoError(t, err)
	assert.True(t, status.WillRunSQL)
	assert.Len(t, status.PendingMigrations, 2)

	require.NoError(t, RunMigrations(ctx, db))
	status, err = GetSchemaStatus(ctx, db, cfg)
	require.NoError(t, err)
	assert.Empty(t, status.PendingMigrations)
	assert.Equal(t, []int{1, 2}, status.AppliedVersions)
}

func TestConnect_SQLiteAutoMigrates(t *testing.T) {
	cfg := &config.Config{
		Env:         "test",
		StoreDriver: config.StoreDriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "devconnector.db"),
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("posts"))
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_RejectsMongoDriver(t *testing.T) {
	_, err := Connect(&config.Config{StoreDriver: config.StoreDriverMongo})
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(&config.Config{
		DBHost: "db", DBPort: "5432", DBUser: "dev", DBPassword: "pw", DBName: "devconnector",
	})
	assert.Equal(t, "host=db port=5432 user=dev password=pw dbname=devconnector sslmode=disable", dsn)
}
