package postgres

import (
	"context"
	"fmt"

	"stoplight/internal/domain/stoplight"
	"stoplight/internal/ports"
)

// StoplightRepo reads and seeds stoplight definitions using pgx and plain SQL.
// All methods must run inside UnitOfWork.WithinTx.
type StoplightRepo struct{}

// NewStoplightRepo constructs a new StoplightRepo.
func NewStoplightRepo() ports.StoplightRepository {
	return &StoplightRepo{}
}

// ListGroups returns every stoplight group ordered by id.
func (repo *StoplightRepo) ListGroups(ctx context.Context) ([]stoplight.Group, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, latitude, longitude
		FROM stoplight_groups
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list stoplight groups: %w", err)
	}
	defer rows.Close()

	var groups []stoplight.Group
	for rows.Next() {
		var g stoplight.Group
		if err := rows.Scan(&g.ID, &g.Location.Latitude, &g.Location.Longitude); err != nil {
			return nil, fmt.Errorf("scan stoplight group: %w", err)
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// ListStoplights returns every stoplight ordered by group then id.
func (repo *StoplightRepo) ListStoplights(ctx context.Context) ([]stoplight.Stoplight, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, group_id, latitude, longitude, lookahead_latitude, lookahead_longitude, direction
		FROM stoplights
		ORDER BY group_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list stoplights: %w", err)
	}
	defer rows.Close()

	var stoplights []stoplight.Stoplight
	for rows.Next() {
		var s stoplight.Stoplight
		if err := rows.Scan(
			&s.ID, &s.GroupID,
			&s.Location.Latitude, &s.Location.Longitude,
			&s.LookaheadLocation.Latitude, &s.LookaheadLocation.Longitude,
			&s.Direction,
		); err != nil {
			return nil, fmt.Errorf("scan stoplight: %w", err)
		}
		stoplights = append(stoplights, s)
	}

	return stoplights, rows.Err()
}

// SeedGroups upserts group definitions by id.
func (repo *StoplightRepo) SeedGroups(ctx context.Context, groups []stoplight.Group) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	for _, g := range groups {
		if err := g.Location.Validate(); err != nil {
			return fmt.Errorf("group %d: %w", g.ID, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stoplight_groups (id, latitude, longitude, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (id) DO UPDATE
			SET latitude = EXCLUDED.latitude,
			    longitude = EXCLUDED.longitude,
			    updated_at = now()
		`, g.ID, g.Location.Latitude, g.Location.Longitude); err != nil {
			return fmt.Errorf("seed group %d: %w", g.ID, err)
		}
	}

	return nil
}

// SeedStoplights upserts stoplight definitions by id.
func (repo *StoplightRepo) SeedStoplights(ctx context.Context, stoplights []stoplight.Stoplight) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	for _, s := range stoplights {
		if err := validateStoplight(s); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stoplights (
				id, group_id,
				latitude, longitude,
				lookahead_latitude, lookahead_longitude,
				direction, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (id) DO UPDATE
			SET group_id = EXCLUDED.group_id,
			    latitude = EXCLUDED.latitude,
			    longitude = EXCLUDED.longitude,
			    lookahead_latitude = EXCLUDED.lookahead_latitude,
			    lookahead_longitude = EXCLUDED.lookahead_longitude,
			    direction = EXCLUDED.direction,
			    updated_at = now()
		`,
			s.ID, s.GroupID,
			s.Location.Latitude, s.Location.Longitude,
			s.LookaheadLocation.Latitude, s.LookaheadLocation.Longitude,
			s.Direction,
		); err != nil {
			return fmt.Errorf("seed stoplight %d: %w", s.ID, err)
		}
	}

	return nil
}

func validateStoplight(s stoplight.Stoplight) error {
	if err := s.Location.Validate(); err != nil {
		return fmt.Errorf("stoplight %d location: %w", s.ID, err)
	}
	if err := s.LookaheadLocation.Validate(); err != nil {
		return fmt.Errorf("stoplight %d lookahead: %w", s.ID, err)
	}
	return nil
}
