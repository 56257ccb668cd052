package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dougsko/rigsync/pkg/engine"
)

// EventQuery represents query parameters for retrieving events
type EventQuery struct {
	Limit   int
	Offset  int
	Since   *time.Time
	Until   *time.Time
	Kind    engine.EventKind
	Field   string
	Outcome string // "applied", "rejected", "skipped", or "" for all
}

// EventStats represents database statistics
type EventStats struct {
	TotalEvents   int       `json:"total_events"`
	TotalApplied  int       `json:"total_applied"`
	TotalRejected int       `json:"total_rejected"`
	TotalSkipped  int       `json:"total_skipped"`
	TotalConnects int       `json:"total_connects"`
	LastCleanup   time.Time `json:"last_cleanup"`
}

// FieldSummary counts command outcomes for one field
type FieldSummary struct {
	Field    string    `json:"field"`
	Applied  int       `json:"applied"`
	Rejected int       `json:"rejected"`
	Skipped  int       `json:"skipped"`
	LastTime time.Time `json:"last_time"`
}

// BandActivity counts frequency changes landing in one band
type BandActivity struct {
	Band    string `json:"band"`
	Changes int    `json:"changes"`
}

const eventColumns = `id, timestamp, kind, field, value, outcome, error, freq_main, mode, band`

func scanEvents(rows *sql.Rows) ([]engine.Event, error) {
	defer rows.Close()

	events := []engine.Event{}
	for rows.Next() {
		var ev engine.Event
		var kind string
		err := rows.Scan(
			&ev.ID,
			&ev.Time,
			&kind,
			&ev.Field,
			&ev.Value,
			&ev.Outcome,
			&ev.Error,
			&ev.FreqMain,
			&ev.Mode,
			&ev.Band,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Kind = engine.EventKind(kind)
		events = append(events, ev)
	}

	return events, rows.Err()
}

// GetEvents retrieves events, newest first
func (es *EventStore) GetEvents(query EventQuery) ([]engine.Event, error) {
	var args []interface{}
	sqlQuery := "SELECT " + eventColumns + " FROM events WHERE 1=1"

	if query.Since != nil {
		sqlQuery += " AND timestamp >= ?"
		args = append(args, *query.Since)
	}
	if query.Until != nil {
		sqlQuery += " AND timestamp <= ?"
		args = append(args, *query.Until)
	}
	if query.Kind != "" {
		sqlQuery += " AND kind = ?"
		args = append(args, string(query.Kind))
	}
	if query.Field != "" {
		sqlQuery += " AND field = ?"
		args = append(args, query.Field)
	}
	if query.Outcome != "" {
		sqlQuery += " AND outcome = ?"
		args = append(args, query.Outcome)
	}

	sqlQuery += " ORDER BY seq DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := es.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return scanEvents(rows)
}

// Recent returns the latest events, newest first
func (es *EventStore) Recent(limit int) ([]engine.Event, error) {
	return es.GetEvents(EventQuery{Limit: limit})
}

// GetEvent finds one event by ID
func (es *EventStore) GetEvent(id string) (*engine.Event, error) {
	rows, err := es.db.Query("SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query event: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, sql.ErrNoRows
	}
	return &events[0], nil
}

// GetFrequencyHistory returns the latest frequency changes
func (es *EventStore) GetFrequencyHistory(limit int) ([]engine.Event, error) {
	return es.GetEvents(EventQuery{Kind: engine.EventFrequency, Limit: limit})
}

// GetFieldSummaries counts command outcomes per field
func (es *EventStore) GetFieldSummaries() ([]FieldSummary, error) {
	rows, err := es.db.Query(`
		SELECT field,
			SUM(CASE WHEN outcome = 'applied' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'rejected' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'skipped' THEN 1 ELSE 0 END),
			MAX(seq)
		FROM events
		WHERE kind = 'command'
		GROUP BY field
		ORDER BY field
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query field summaries: %w", err)
	}
	defer rows.Close()

	var summaries []FieldSummary
	var lastSeq []int64
	for rows.Next() {
		var s FieldSummary
		var seq int64
		if err := rows.Scan(&s.Field, &s.Applied, &s.Rejected, &s.Skipped, &seq); err != nil {
			return nil, fmt.Errorf("failed to scan field summary: %w", err)
		}
		summaries = append(summaries, s)
		lastSeq = append(lastSeq, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, seq := range lastSeq {
		if err := es.db.QueryRow("SELECT timestamp FROM events WHERE seq = ?", seq).Scan(&summaries[i].LastTime); err != nil {
			return nil, fmt.Errorf("failed to read last time for %s: %w", summaries[i].Field, err)
		}
	}
	return summaries, nil
}

// GetBandActivity counts frequency changes per band, busiest first
func (es *EventStore) GetBandActivity() ([]BandActivity, error) {
	rows, err := es.db.Query(`
		SELECT band, COUNT(*) AS changes
		FROM events
		WHERE kind = 'frequency' AND band != ''
		GROUP BY band
		ORDER BY changes DESC, band ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query band activity: %w", err)
	}
	defer rows.Close()

	var activity []BandActivity
	for rows.Next() {
		var a BandActivity
		if err := rows.Scan(&a.Band, &a.Changes); err != nil {
			return nil, fmt.Errorf("failed to scan band activity: %w", err)
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

// GetEventStats retrieves database statistics
func (es *EventStore) GetEventStats() (*EventStats, error) {
	var stats EventStats
	var lastCleanup sql.NullTime

	err := es.db.QueryRow(`
		SELECT total_events, total_applied, total_rejected, total_skipped, total_connects, last_cleanup
		FROM event_stats WHERE id = 1
	`).Scan(&stats.TotalEvents, &stats.TotalApplied, &stats.TotalRejected, &stats.TotalSkipped, &stats.TotalConnects, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get event stats: %w", err)
	}

	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}

	return &stats, nil
}

// GetEventCount returns the number of stored events
func (es *EventStore) GetEventCount() (int, error) {
	var count int
	err := es.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count)
	return count, err
}

// DeleteEventsBefore removes events older than t and returns how many went
func (es *EventStore) DeleteEventsBefore(t time.Time) (int64, error) {
	result, err := es.db.Exec("DELETE FROM events WHERE timestamp < ?", t)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	return result.RowsAffected()
}
