// Package entdriver implements storage.Driver on top of ent's SQL dialect
// layer. It is database-agnostic and embedded by the sqlite and postgres
// drivers.
package entdriver

import (
	"cmp"
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/wso2/copilotsse/pkg/eventstream"
	"github.com/wso2/copilotsse/pkg/storage"
	"github.com/wso2/copilotsse/pkg/storage/ent/migrate"
)

const (
	eventsTable = "stream_events"

	colEventID       = "event_id"
	colStreamID      = "stream_id"
	colSeq           = "seq"
	colKind          = "kind"
	colEventType     = "event_type"
	colSchemaVersion = "schema_version"
	colEmittedAt     = "emitted_at"
	colPayload       = "payload"
)

var eventColumns = []string{
	colEventID,
	colStreamID,
	colSeq,
	colKind,
	colEventType,
	colSchemaVersion,
	colEmittedAt,
	colPayload,
}

// EntDriver provides storage operations over an ent SQL driver.
type EntDriver struct {
	Driver *entsql.Driver
}

// New wraps drv and creates the schema if it does not exist yet.
func New(ctx context.Context, drv *entsql.Driver) (*EntDriver, error) {
	if err := migrate.Create(ctx, drv); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &EntDriver{Driver: drv}, nil
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

// Put stores an event. Returns true if the event was newly inserted, false if
// an event with the same ID was already stored.
func (ed *EntDriver) Put(ctx context.Context, event *eventstream.StreamEvent) (bool, error) {
	if event == nil {
		return false, storage.ErrNilEvent
	}

	query, args := ed.builder().
		Insert(eventsTable).
		Columns(eventColumns...).
		Values(
			event.EventID,
			event.StreamID,
			event.Seq,
			event.Kind,
			event.EventType,
			event.SchemaVersion,
			event.EmittedAt.UnixNano(),
			string(event.Payload),
		).
		OnConflict(
			entsql.ConflictColumns(colEventID),
			entsql.DoNothing(),
		).
		Query()

	var res stdsql.Result
	if err := ed.Driver.Exec(ctx, query, args, &res); err != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", event.EventID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return n > 0, nil
}

// Events returns every event of a stream ordered by sequence number.
func (ed *EntDriver) Events(ctx context.Context, streamID string) ([]*eventstream.StreamEvent, error) {
	b := ed.builder()
	query, args := b.Select(eventColumns...).
		From(b.Table(eventsTable)).
		Where(entsql.EQ(colStreamID, streamID)).
		OrderBy(colSeq, colEmittedAt).
		Query()

	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*eventstream.StreamEvent
	for rows.Next() {
		var (
			ev        eventstream.StreamEvent
			emittedAt int64
			payload   string
		)
		if err := rows.Scan(
			&ev.EventID,
			&ev.StreamID,
			&ev.Seq,
			&ev.Kind,
			&ev.EventType,
			&ev.SchemaVersion,
			&emittedAt,
			&payload,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.EmittedAt = time.Unix(0, emittedAt).UTC()
		ev.Payload = json.RawMessage(payload)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	if len(events) == 0 {
		return nil, storage.ErrNotFound{StreamID: streamID}
	}

	return events, nil
}

// Streams summarizes every recorded stream, most recently active first.
func (ed *EntDriver) Streams(ctx context.Context) ([]storage.StreamSummary, error) {
	b := ed.builder()
	query, args := b.Select(
		colStreamID,
		"COUNT(*)",
		"MIN(emitted_at)",
		"MAX(emitted_at)",
	).
		From(b.Table(eventsTable)).
		GroupBy(colStreamID).
		Query()

	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query streams: %w", err)
	}
	defer rows.Close()

	var summaries []storage.StreamSummary
	for rows.Next() {
		var (
			sum         storage.StreamSummary
			first, last int64
		)
		if err := rows.Scan(&sum.StreamID, &sum.Events, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan stream summary: %w", err)
		}
		sum.FirstSeen = time.Unix(0, first).UTC()
		sum.LastSeen = time.Unix(0, last).UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate streams: %w", err)
	}

	slices.SortFunc(summaries, func(a, b storage.StreamSummary) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.StreamID, b.StreamID)
	})

	return summaries, nil
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}
