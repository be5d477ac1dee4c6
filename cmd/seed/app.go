package seed

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"stoplight/internal/domain/geo"
	"stoplight/internal/domain/stoplight"
	"stoplight/internal/general/config"
	"stoplight/internal/general/logger"
	"stoplight/internal/general/postgres"
)

// seedFile mirrors the YAML layout of a stoplight definitions file:
//
//	groups:
//	  - id: 1
//	    latitude: 40.7128
//	    longitude: -74.0060
//	stoplights:
//	  - id: 11
//	    group_id: 1
//	    latitude: 40.7129
//	    longitude: -74.0060
//	    lookahead_latitude: 40.7131
//	    lookahead_longitude: -74.0060
//	    direction: N
type seedFile struct {
	Groups []struct {
		ID        int64   `yaml:"id"`
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
	} `yaml:"groups"`
	Stoplights []struct {
		ID                 int64   `yaml:"id"`
		GroupID            int64   `yaml:"group_id"`
		Latitude           float64 `yaml:"latitude"`
		Longitude          float64 `yaml:"longitude"`
		LookaheadLatitude  float64 `yaml:"lookahead_latitude"`
		LookaheadLongitude float64 `yaml:"lookahead_longitude"`
		Direction          string  `yaml:"direction"`
	} `yaml:"stoplights"`
}

// Run loads stoplight group and stoplight definitions from a YAML file and
// upserts them into Postgres in one transaction. Existing rows with matching IDs
// are updated, so re-running the seed is safe.
func Run(ctx context.Context, path string) error {
	logger := logger.New("stoplight-seed")
	ctx = logger.WithRequestID(ctx, "seed-001")

	cfg, err := config.LoadFromFile("./config/config.yaml")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if len(file.Groups) == 0 {
		return fmt.Errorf("seed file %s defines no groups", path)
	}

	groups := make([]stoplight.Group, 0, len(file.Groups))
	for _, g := range file.Groups {
		location, err := geo.NewCoordinate(g.Latitude, g.Longitude)
		if err != nil {
			return fmt.Errorf("group %d: %w", g.ID, err)
		}
		groups = append(groups, stoplight.Group{ID: g.ID, Location: location})
	}

	groupIDs := make(map[int64]struct{}, len(groups))
	for _, g := range groups {
		groupIDs[g.ID] = struct{}{}
	}

	stoplights := make([]stoplight.Stoplight, 0, len(file.Stoplights))
	for _, s := range file.Stoplights {
		if _, ok := groupIDs[s.GroupID]; !ok {
			return fmt.Errorf("stoplight %d (group %d): %w", s.ID, s.GroupID, stoplight.ErrInvalidGroupRef)
		}
		location, err := geo.NewCoordinate(s.Latitude, s.Longitude)
		if err != nil {
			return fmt.Errorf("stoplight %d: %w", s.ID, err)
		}
		lookahead, err := geo.NewCoordinate(s.LookaheadLatitude, s.LookaheadLongitude)
		if err != nil {
			return fmt.Errorf("stoplight %d lookahead: %w", s.ID, err)
		}
		stoplights = append(stoplights, stoplight.Stoplight{
			ID:                s.ID,
			GroupID:           s.GroupID,
			Location:          location,
			LookaheadLocation: lookahead,
			Direction:         s.Direction,
		})
	}

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	uow := postgres.NewUnitOfWork(pool)
	repo := postgres.NewStoplightRepo()

	err = uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := repo.SeedGroups(ctx, groups); err != nil {
			return fmt.Errorf("seed groups: %w", err)
		}
		if err := repo.SeedStoplights(ctx, stoplights); err != nil {
			return fmt.Errorf("seed stoplights: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "seed_failed", "Failed to seed stoplight definitions", err,
			map[string]any{"file": path})
		return err
	}

	logger.Info(ctx, "seed_completed", "Stoplight definitions seeded",
		map[string]any{"file": path, "groups": len(groups), "stoplights": len(stoplights)})
	return nil
}
