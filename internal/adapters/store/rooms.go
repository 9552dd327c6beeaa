package store

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

type roomsFile struct {
	Rooms []domain.Room `yaml:"rooms"`
}

// LoadRooms reads a YAML room list:
//
//	rooms:
//	  - id: general
//	    name: General
func LoadRooms(path string) ([]domain.Room, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read rooms file: %w", err)
	}
	var f roomsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("store: parse rooms file: %w", err)
	}
	seen := make(map[domain.RoomID]bool, len(f.Rooms))
	for i := range f.Rooms {
		if err := f.Rooms[i].Validate(); err != nil {
			return nil, fmt.Errorf("store: room #%d: %w", i+1, err)
		}
		if seen[f.Rooms[i].ID] {
			return nil, fmt.Errorf("store: duplicate room %q", f.Rooms[i].ID)
		}
		seen[f.Rooms[i].ID] = true
	}
	return f.Rooms, nil
}

// Seed creates every room that does not exist yet.
func Seed(ctx context.Context, seeder core.RoomSeeder, rooms []domain.Room) error {
	for _, r := range rooms {
		if err := seeder.EnsureRoom(ctx, r); err != nil {
			return err
		}
	}
	log.Info().Str("module", "adapters.store").Int("rooms", len(rooms)).Msg("rooms seeded")
	return nil
}
