package main

import (
	"fmt"
	"path/filepath"

	"github.com/OCAP2/rigsync/internal/config"
	"github.com/OCAP2/rigsync/internal/database"
	"github.com/OCAP2/rigsync/internal/logging"
	"github.com/OCAP2/rigsync/internal/storage"
	"github.com/OCAP2/rigsync/internal/storage/memory"
	pgstorage "github.com/OCAP2/rigsync/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/rigsync/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/rigsync/internal/storage/websocket"
	"github.com/spf13/viper"
)

func initStorage() error {
	Logger.Debug("Initializing storage")

	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	storageBackend = backend
	Logger.Info("Storage ready", "type", storageCfg.Type)
	return nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			LogManager: SlogManager,
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     sqliteDumpPath(storageCfg.SQLite.OutputPath),
		}, SlogManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized")
		return backend, nil

	case "database":
		// Postgres when reachable, in-memory SQLite with dumps otherwise
		dbManager = database.NewManager(logging.NewComponentLogger(componentLogWriter(), viper.GetString("logLevel"), "database"))
		if err := dbManager.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if dbManager.ShouldSaveLocal {
			dbManager.SqliteFilePath = sqliteDumpPath(storageCfg.SQLite.OutputPath)
			Logger.Info("Database storage using SQLite fallback", "dump", dbManager.SqliteFilePath)
			return sqlitestorage.NewWithDB(dbManager.DB, sqlitestorage.Config{
				DumpInterval: storageCfg.SQLite.DumpInterval,
				DumpPath:     dbManager.SqliteFilePath,
			}, SlogManager), nil
		}
		Logger.Info("Database storage using Postgres")
		return pgstorage.New(pgstorage.Dependencies{
			DB:         dbManager.DB,
			LogManager: SlogManager,
		}), nil

	case "websocket":
		Logger.Info("WebSocket storage backend initialized", "url", storageCfg.WebSocket.URL)
		return wsstorage.New(wsstorage.Config{
			URL:     storageCfg.WebSocket.URL,
			Secret:  storageCfg.WebSocket.Secret,
			Timeout: storageCfg.WebSocket.Timeout,
		}, Logger), nil

	default:
		Logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory, ServiceVersion), nil
	}
}

// sqliteDumpPath stamps the run start into the configured dump file name, so
// every run keeps its own database.
func sqliteDumpPath(configured string) string {
	dir := filepath.Dir(configured)
	base := filepath.Base(configured)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	if ext == "" {
		ext = ".db"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, SessionStartTime.Format("20060102_150405"), ext))
}
