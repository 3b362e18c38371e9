package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/OCAP2/rigsync/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestSetup(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Setup(db))

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	var info []model.RigsyncInfo
	require.NoError(t, db.Find(&info).Error)
	require.Len(t, info, 1)
	assert.Equal(t, "rigsync", info[0].ServiceName)
	assert.Equal(t, uint(SchemaVersion), info[0].SchemaVersion)

	// second run keeps a single info row
	require.NoError(t, Setup(db))
	var count int64
	require.NoError(t, db.Model(&model.RigsyncInfo{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestManager_Setup(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.False(t, m.IsValid)
	m.DB = openTestDB(t)
	m.IsValid = true
	require.NoError(t, m.Setup())
	assert.True(t, m.IsValid)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Setup(db))
	require.NoError(t, db.Create(&model.Session{Name: "take"}).Error)

	path := filepath.Join(t.TempDir(), "nested", "out.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	assert.FileExists(t, path)

	// existing file is replaced
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := GetSqliteDBStandalone(path)
	require.NoError(t, err)
	var sessions []model.Session
	require.NoError(t, disk.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, "take", sessions[0].Name)
	sqlDB, _ := disk.DB()
	_ = sqlDB.Close()

	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestManager_DumpMemoryToDisk(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.DB = openTestDB(t)
	assert.Error(t, m.DumpMemoryToDisk(), "path not set")

	m.SqliteFilePath = filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, m.DumpMemoryToDisk())
	assert.FileExists(t, m.SqliteFilePath)
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.db", "b.db", "notes.txt", ".db"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.db"), 0755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)

	_, err = GetBackupDBPaths(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "db.local")
	viper.Set("db.port", "5433")
	viper.Set("db.username", "rig")
	viper.Set("db.password", "secret")
	viper.Set("db.database", "takes")

	assert.Equal(t, "host=db.local port=5433 user=rig password=secret dbname=takes sslmode=disable", PostgresDSN())
}
