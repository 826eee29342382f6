package configstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldline-io/fieldline-core/internal/infrastructure/database"
	"github.com/fieldline-io/fieldline-core/internal/resolver"
)

// Store persists the latest applied control group configuration.
//
// Only the current topology is kept: Save replaces the whole table in one
// transaction, so Load always returns exactly what the controller last
// applied.
type Store struct {
	db *database.DB
}

// New creates a store on top of an open, migrated database.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Save replaces the stored configuration with groups.
func (s *Store) Save(ctx context.Context, groups []resolver.ControlGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM control_groups"); err != nil {
		return fmt.Errorf("clearing control groups: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, g := range groups {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO control_groups
				(sensor_topic, setpoint_topic, schedule_topic, value_topic, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			g.SensorTopic, g.SetpointTopic, g.ScheduleTopic, g.ValueTopic, now,
		); err != nil {
			return fmt.Errorf("inserting control group %q: %w", g.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing control groups: %w", err)
	}
	return nil
}

// Load returns the stored configuration, empty when none was saved yet.
func (s *Store) Load(ctx context.Context) ([]resolver.ControlGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sensor_topic, setpoint_topic, schedule_topic, value_topic
		FROM control_groups
		ORDER BY sensor_topic`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying control groups: %w", err)
	}
	defer rows.Close()

	var groups []resolver.ControlGroup
	for rows.Next() {
		var g resolver.ControlGroup
		if err := rows.Scan(&g.SensorTopic, &g.SetpointTopic, &g.ScheduleTopic, &g.ValueTopic); err != nil {
			return nil, fmt.Errorf("scanning control group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating control groups: %w", err)
	}
	return groups, nil
}
