// Package gormstorage implements the storage.Backend interface on top of GORM
// with internal queues and a background DB writer goroutine. The sqlite and
// postgres backends embed it.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/rigsync/internal/database"
	"github.com/OCAP2/rigsync/internal/logging"
	"github.com/OCAP2/rigsync/internal/model"
	"github.com/OCAP2/rigsync/internal/model/convert"
	"github.com/OCAP2/rigsync/internal/queue"
	"github.com/OCAP2/rigsync/pkg/core"

	"gorm.io/gorm"
)

// WriteInterval is the pause between two drains of the write queues.
const WriteInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Calibrations *queue.Queue[model.Calibration]
	PoseFrames   *queue.Queue[model.PoseFrame]
	TargetEvents *queue.Queue[model.TargetEvent]
	Performance  *queue.Queue[model.BridgePerformance]
}

func newQueues() *queues {
	return &queues{
		Calibrations: queue.New[model.Calibration](),
		PoseFrames:   queue.New[model.PoseFrame](),
		TargetEvents: queue.New[model.TargetEvent](),
		Performance:  queue.New[model.BridgePerformance](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
// Without a DB it only queues, which is how the unit tests drive it.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	stopChan  chan struct{}
	done      sync.WaitGroup

	// serializes the writer loop with Flush
	writeMu sync.Mutex
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if b.deps.DB == nil {
		return nil
	}

	b.deps.LogManager.WriteLog("setupDB", "Migrating schema", "INFO")
	if err := database.Setup(b.deps.DB); err != nil {
		b.deps.LogManager.WriteLog("setupDB", err.Error(), "ERROR")
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.deps.LogManager.WriteLog("setupDB", "Database setup complete", "INFO")

	b.startDBWriters()
	return nil
}

// DB returns the underlying connection, or nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Close stops the DB writer goroutine and writes what is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
		close(b.stopChan)
	}
	b.done.Wait()
	b.Flush()
	return nil
}

// StartSession inserts the session row and assigns its ID back to s.
func (b *Backend) StartSession(s *core.Session) error {
	if b.deps.DB == nil {
		b.sessionID.Store(uint64(s.ID))
		return nil
	}

	gormSession := convert.CoreToSession(*s)
	gormSession.ID = 0
	if err := b.deps.DB.Create(&gormSession).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	s.ID = gormSession.ID
	b.sessionID.Store(uint64(gormSession.ID))
	return nil
}

// SetSessionID sets the current session ID for the DB writer (used by CLI tools).
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// SessionID returns the current session ID.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// EndSession writes the queues and stamps the session end time.
func (b *Backend) EndSession() error {
	b.Flush()

	id := b.SessionID()
	if b.deps.DB == nil || id == 0 {
		return nil
	}
	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to end session %d: %w", id, err)
	}
	return nil
}

// RecordCalibration converts and queues a calibration with its joints.
func (b *Backend) RecordCalibration(c *core.CalibrationRecord) error {
	b.queues.Calibrations.Push(convert.CoreToCalibration(*c))
	return nil
}

// RecordPoseFrame converts and queues a pose frame and its performance sample.
func (b *Backend) RecordPoseFrame(f *core.PoseFrame) error {
	b.queues.PoseFrames.Push(convert.CoreToPoseFrame(*f))
	b.queues.Performance.Push(model.BridgePerformance{
		Time:            f.Time,
		Frame:           f.Frame,
		Targets:         uint16(len(f.Targets)),
		BroadcastMs:     float32(f.Duration.Microseconds()) / 1000,
		WriteQueueDepth: uint16(min(b.queues.PoseFrames.Len(), 1<<16-1)),
	})
	return nil
}

// RecordTargetEvent converts and queues an attach or detach event.
func (b *Backend) RecordTargetEvent(e *core.TargetEvent) error {
	b.queues.TargetEvents.Push(convert.CoreToTargetEvent(*e))
	return nil
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T), onSuccess func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Requeue(items...)
		return
	}

	tx.Commit()
	if onSuccess != nil {
		onSuccess(items)
	}
}

// Flush drains every queue into the DB once. It is a no-op without a DB.
func (b *Backend) Flush() {
	if b.deps.DB == nil || b.queues == nil {
		return
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	db := b.deps.DB
	log := b.deps.LogManager.WriteLog
	sessionID := b.SessionID()

	stampCalibrations := func(items []model.Calibration) {
		for i := range items {
			items[i].SessionID = sessionID
			for j := range items[i].Joints {
				items[i].Joints[j].SessionID = sessionID
			}
		}
	}
	stampPoseFrames := func(items []model.PoseFrame) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampTargetEvents := func(items []model.TargetEvent) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampPerformance := func(items []model.BridgePerformance) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}

	writeQueue(db, b.queues.Calibrations, "calibrations", log, stampCalibrations, nil)
	writeQueue(db, b.queues.TargetEvents, "target events", log, stampTargetEvents, nil)
	writeQueue(db, b.queues.PoseFrames, "pose frames", log, stampPoseFrames, nil)
	writeQueue(db, b.queues.Performance, "bridge performance", log, stampPerformance, nil)
}

// startDBWriters starts the background goroutine that periodically drains queues into the DB.
func (b *Backend) startDBWriters() {
	b.done.Add(1)
	go func() {
		defer b.done.Done()
		ticker := time.NewTicker(WriteInterval)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				b.Flush()
			}
		}
	}()
}
