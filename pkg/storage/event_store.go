package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dougsko/rigsync/pkg/engine"
	"github.com/dougsko/rigsync/pkg/logging"
)

const component = "storage"

// EventStore persists engine events in SQLite
type EventStore struct {
	db        *sql.DB
	dbPath    string
	maxEvents int
	log       *logging.Logger
}

// NewEventStore opens or creates the event database. maxEvents bounds the
// number of rows kept; zero keeps everything.
func NewEventStore(dbPath string, maxEvents int, logger *logging.Logger) (*EventStore, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	store := &EventStore{
		dbPath:    dbPath,
		maxEvents: maxEvents,
		log:       logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize event store: %w", err)
	}

	return store, nil
}

func (es *EventStore) initialize() error {
	if es.dbPath == "" {
		es.dbPath = "./rigsync.db"
	}

	if err := os.MkdirAll(filepath.Dir(es.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := es.dbPath + "?_busy_timeout=10000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	es.db = db

	if err := es.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := es.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	es.log.Info(component, "event store initialized", map[string]interface{}{
		"path":       es.dbPath,
		"max_events": es.maxEvents,
	})
	return nil
}

func (es *EventStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		timestamp DATETIME NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('command', 'frequency', 'connect', 'disconnect')),
		field TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		freq_main INTEGER NOT NULL DEFAULT 0,
		mode TEXT NOT NULL DEFAULT '',
		band TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS event_stats (
		id INTEGER PRIMARY KEY,
		total_events INTEGER NOT NULL DEFAULT 0,
		total_applied INTEGER NOT NULL DEFAULT 0,
		total_rejected INTEGER NOT NULL DEFAULT 0,
		total_skipped INTEGER NOT NULL DEFAULT 0,
		total_connects INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO event_stats (id) VALUES (1);
	`

	_, err := es.db.Exec(schema)
	return err
}

func (es *EventStore) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)",
		"CREATE INDEX IF NOT EXISTS idx_events_field ON events(field)",
		"CREATE INDEX IF NOT EXISTS idx_events_outcome ON events(outcome)",
	}

	for _, indexSQL := range indexes {
		if _, err := es.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// StoreEvent records ev, assigning an ID when it has none, and returns the ID
func (es *EventStore) StoreEvent(ev engine.Event) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	tx, err := es.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO events (
			id, timestamp, kind, field, value, outcome, error, freq_main, mode, band
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Time, string(ev.Kind), ev.Field, ev.Value, ev.Outcome, ev.Error, ev.FreqMain, ev.Mode, ev.Band)
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}

	if err := es.updateStats(tx, ev); err != nil {
		return "", fmt.Errorf("failed to update stats: %w", err)
	}

	if err := es.cleanupOldEvents(tx); err != nil {
		es.log.Warn(component, "failed to cleanup old events", map[string]interface{}{"error": err.Error()})
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return ev.ID, nil
}

func (es *EventStore) updateStats(tx *sql.Tx, ev engine.Event) error {
	_, err := tx.Exec(`
		UPDATE event_stats SET
			total_events = total_events + 1,
			total_applied = CASE WHEN ? = 'applied' THEN total_applied + 1 ELSE total_applied END,
			total_rejected = CASE WHEN ? = 'rejected' THEN total_rejected + 1 ELSE total_rejected END,
			total_skipped = CASE WHEN ? = 'skipped' THEN total_skipped + 1 ELSE total_skipped END,
			total_connects = CASE WHEN ? = 'connect' THEN total_connects + 1 ELSE total_connects END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, ev.Outcome, ev.Outcome, ev.Outcome, string(ev.Kind))
	return err
}

// Run stores events from ch until it is closed or ctx ends
func (es *EventStore) Run(ctx context.Context, ch <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if _, err := es.StoreEvent(ev); err != nil {
				es.log.Error(component, "failed to store event", map[string]interface{}{
					"kind":  string(ev.Kind),
					"error": err.Error(),
				})
			}
		}
	}
}

// CleanupOldEvents removes events beyond the maximum
func (es *EventStore) CleanupOldEvents() error {
	tx, err := es.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := es.cleanupOldEvents(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (es *EventStore) cleanupOldEvents(tx *sql.Tx) error {
	if es.maxEvents <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return err
	}
	if count <= es.maxEvents {
		return nil
	}

	_, err := tx.Exec(`
		DELETE FROM events
		WHERE seq IN (
			SELECT seq FROM events
			ORDER BY seq ASC
			LIMIT ?
		)
	`, count-es.maxEvents)
	if err != nil {
		return err
	}

	_, err = tx.Exec("UPDATE event_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// Close closes the database connection
func (es *EventStore) Close() error {
	if es.db != nil {
		return es.db.Close()
	}
	return nil
}
