package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/outpost/internal/storage"
)

// AppendTelemetryEvent records one operational event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(evt.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	attributesJSON := evt.AttributesJSON
	if attributesJSON == nil && len(evt.Attributes) > 0 {
		encoded, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("marshal telemetry attributes: %w", err)
		}
		attributesJSON = encoded
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO telemetry_events (timestamp, event_name, severity, order_id, pass_id, attributes_json)
VALUES (?, ?, ?, ?, ?, ?)
`,
		toMillis(evt.Timestamp),
		evt.EventName,
		evt.Severity,
		evt.OrderID,
		evt.PassID,
		string(attributesJSON),
	); err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

// ListTelemetryEvents returns recorded events, newest first, up to limit.
// A non-positive limit returns everything.
func (s *Store) ListTelemetryEvents(ctx context.Context, limit int) ([]storage.TelemetryEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT timestamp, event_name, severity, order_id, pass_id, attributes_json
FROM telemetry_events
ORDER BY timestamp DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list telemetry events: %w", err)
	}
	defer rows.Close()

	events := []storage.TelemetryEvent{}
	for rows.Next() {
		var evt storage.TelemetryEvent
		var timestampMillis int64
		var attributesJSON string
		if err := rows.Scan(&timestampMillis, &evt.EventName, &evt.Severity, &evt.OrderID, &evt.PassID, &attributesJSON); err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}
		evt.Timestamp = fromMillis(timestampMillis)
		evt.AttributesJSON = []byte(attributesJSON)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry events: %w", err)
	}
	return events, nil
}
