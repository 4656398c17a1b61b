// Package migrate describes the tables of the SQL storage drivers and
// creates them through ent's migration engine.
package migrate

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// StreamEventsColumns holds the columns for the "stream_events" table.
	StreamEventsColumns = []*schema.Column{
		{Name: "event_id", Type: field.TypeString},
		{Name: "stream_id", Type: field.TypeString},
		{Name: "seq", Type: field.TypeInt},
		{Name: "kind", Type: field.TypeString},
		{Name: "event_type", Type: field.TypeString},
		{Name: "schema_version", Type: field.TypeInt},
		{Name: "emitted_at", Type: field.TypeInt64},
		{Name: "payload", Type: field.TypeString, Size: 2147483647},
	}

	// StreamEventsTable holds the schema information for the "stream_events" table.
	StreamEventsTable = &schema.Table{
		Name:       "stream_events",
		Columns:    StreamEventsColumns,
		PrimaryKey: []*schema.Column{StreamEventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "streamevent_stream_id_seq",
				Unique:  false,
				Columns: []*schema.Column{StreamEventsColumns[1], StreamEventsColumns[2]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		StreamEventsTable,
	}
)

// Create runs an append-only migration of Tables against drv.
func Create(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("ent/migrate: %w", err)
	}
	return m.Create(ctx, Tables...)
}
