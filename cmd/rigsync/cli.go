package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OCAP2/rigsync/internal/config"
	"github.com/OCAP2/rigsync/internal/database"
	"github.com/OCAP2/rigsync/internal/logging"
	"github.com/OCAP2/rigsync/internal/model"
	"github.com/OCAP2/rigsync/internal/model/convert"
	"github.com/OCAP2/rigsync/internal/storage/memory"
	v1 "github.com/OCAP2/rigsync/internal/storage/memory/export/v1"
)

//////////////////////////////////////////////////////////////
// Direct (exe) functions
//////////////////////////////////////////////////////////////

func runCommand(name string, args []string) error {
	switch strings.ToLower(name) {
	case "export":
		return exportCommand(args)
	case "migratebackups":
		return migrateCommand(args)
	case "setupdb":
		return setupDBCommand()
	default:
		return fmt.Errorf("unknown command %q (want export, migratebackups or setupdb)", name)
	}
}

// exportCommand writes the JSON export of stored sessions.
func exportCommand(args []string) error {
	flags := pflag.NewFlagSet("export", pflag.ContinueOnError)
	sqlitePath := flags.String("sqlite", "", "read from this SQLite file instead of Postgres")
	outDir := flags.String("out", "", "output directory (default storage.memory.outputDir)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("no session IDs provided")
	}

	db, err := openDB(*sqlitePath)
	if err != nil {
		return err
	}

	memCfg := config.GetStorageConfig().Memory
	if *outDir != "" {
		memCfg.OutputDir = *outDir
	}
	if err := os.MkdirAll(memCfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, arg := range flags.Args() {
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid session id %q: %w", arg, err)
		}

		txStart := time.Now()
		data, err := loadSessionData(db, uint(id))
		if err != nil {
			return err
		}
		path, err := memory.WriteExport(memCfg, *data.Session, v1.Build(data))
		if err != nil {
			return fmt.Errorf("writing session %d: %w", id, err)
		}
		Logger.Info("Exported session",
			"id", id,
			"frames", len(data.Frames),
			"calibrations", len(data.Calibrations),
			"file", path,
			"took", time.Since(txStart))
	}
	return nil
}

func openDB(sqlitePath string) (*gorm.DB, error) {
	if sqlitePath != "" {
		db, err := database.GetSqliteDBStandalone(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %s: %w", sqlitePath, err)
		}
		return db, nil
	}

	db, err := database.GetPostgresDBStandalone()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	return db, nil
}

// loadSessionData reads a session and its records ordered by frame.
func loadSessionData(db *gorm.DB, id uint) (*v1.SessionData, error) {
	var s model.Session
	if err := db.Model(&model.Session{}).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, fmt.Errorf("error getting session %d: %w", id, err)
	}
	session := convert.SessionToCore(s)
	data := &v1.SessionData{
		Session:        &session,
		ServiceVersion: s.Version,
	}

	var cals []model.Calibration
	err := db.Model(&model.Calibration{}).
		Preload("Joints", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Where("session_id = ?", id).
		Order("frame ASC, id ASC").
		Find(&cals).Error
	if err != nil {
		return nil, fmt.Errorf("error getting calibrations: %w", err)
	}
	for _, c := range cals {
		data.Calibrations = append(data.Calibrations, convert.CalibrationToCore(c))
	}

	var frames []model.PoseFrame
	err = db.Model(&model.PoseFrame{}).
		Where("session_id = ?", id).
		Order("frame ASC, id ASC").
		Find(&frames).Error
	if err != nil {
		return nil, fmt.Errorf("error getting pose frames: %w", err)
	}
	for _, f := range frames {
		data.Frames = append(data.Frames, convert.PoseFrameToCore(f))
	}

	var events []model.TargetEvent
	err = db.Model(&model.TargetEvent{}).
		Where("session_id = ?", id).
		Order("frame ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("error getting target events: %w", err)
	}
	for _, e := range events {
		data.TargetEvents = append(data.TargetEvents, convert.TargetEventToCore(e))
	}

	return data, nil
}

// migrateCommand copies every SQLite backup in the backup directory into
// Postgres and renames each migrated file to *.migrated.
func migrateCommand(args []string) error {
	flags := pflag.NewFlagSet("migratebackups", pflag.ContinueOnError)
	dir := flags.String("dir", filepath.Dir(viper.GetString("storage.sqlite.outputPath")), "directory holding *.db backups")
	if err := flags.Parse(args); err != nil {
		return err
	}

	sqlitePaths, err := database.GetBackupDBPaths(*dir)
	if err != nil {
		return fmt.Errorf("error getting backup database paths: %w", err)
	}
	postgresDB, err := openDB("")
	if err != nil {
		return err
	}
	if err := database.Setup(postgresDB); err != nil {
		return err
	}

	successfulMigrations := make([]string, 0, len(sqlitePaths))
	for _, sqlitePath := range sqlitePaths {
		sqliteDB, err := database.GetSqliteDBStandalone(sqlitePath)
		if err != nil {
			return fmt.Errorf("error getting sqlite database: %w", err)
		}

		// TODO: advance the Postgres id sequences past the copied ids.
		err = postgresDB.Transaction(func(tx *gorm.DB) error {
			return migrateBackup(sqliteDB, tx)
		})
		if sqlConnection, cerr := sqliteDB.DB(); cerr == nil {
			if cerr := sqlConnection.Close(); cerr != nil {
				Logger.Error("Error closing sqlite connection", "error", cerr)
			}
		}
		if err != nil {
			return fmt.Errorf("error migrating %s: %w", sqlitePath, err)
		}

		if err := os.Rename(sqlitePath, sqlitePath+".migrated"); err != nil {
			Logger.Error("Error renaming sqlite file", "error", err)
		}
		successfulMigrations = append(successfulMigrations, sqlitePath)
	}

	Logger.Info("Successfully migrated backups, it's recommended to delete these to avoid future data duplication",
		"count", len(successfulMigrations),
		"paths", successfulMigrations)
	return nil
}

// migrateBackup copies all tables, parents first.
func migrateBackup(src, dst *gorm.DB) error {
	steps := []struct {
		table string
		run   func() error
	}{
		{"rigsync_infos", func() error { return migrateTable(src, dst, model.RigsyncInfo{}) }},
		{"sessions", func() error { return migrateTable(src, dst, model.Session{}) }},
		{"calibrations", func() error { return migrateTable(src, dst, model.Calibration{}) }},
		{"calibration_joints", func() error { return migrateTable(src, dst, model.CalibrationJoint{}) }},
		{"pose_frames", func() error { return migrateTable(src, dst, model.PoseFrame{}) }},
		{"target_events", func() error { return migrateTable(src, dst, model.TargetEvent{}) }},
		{"bridge_performances", func() error { return migrateTable(src, dst, model.BridgePerformance{}) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("error migrating %s: %w", step.table, err)
		}
	}
	return nil
}

// migrateTable copies every row of M, skipping rows whose key already exists.
func migrateTable[M any](src, dst *gorm.DB, m M) error {
	var rows []map[string]any
	if err := src.Model(&m).Find(&rows).Error; err != nil {
		return err
	}
	Logger.Info("Found records", "count", len(rows), "database", src.Name())
	if len(rows) == 0 {
		return nil
	}

	return dst.Model(&m).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rows).Error
}

// setupDBCommand connects with the Postgres/SQLite fallback and migrates the schema.
func setupDBCommand() error {
	dbManager = database.NewManager(logging.NewComponentLogger(componentLogWriter(), viper.GetString("logLevel"), "database"))
	if err := dbManager.Connect(); err != nil {
		return err
	}
	if err := dbManager.Setup(); err != nil {
		return err
	}
	if dbManager.ShouldSaveLocal {
		dbManager.SqliteFilePath = sqliteDumpPath(viper.GetString("storage.sqlite.outputPath"))
		if err := dbManager.DumpMemoryToDisk(); err != nil {
			return err
		}
		Logger.Info("Postgres unreachable, schema written to SQLite", "path", dbManager.SqliteFilePath)
	}
	return nil
}
