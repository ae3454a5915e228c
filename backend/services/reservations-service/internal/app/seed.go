package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"chargeslot/backend/services/reservations-service/internal/models"
)

// Seed lists stations and owners to upsert at startup.
type Seed struct {
	Stations []models.Station `yaml:"stations"`
	Owners   []models.Owner   `yaml:"owners"`
}

type seedStation struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Location  string   `yaml:"location"`
	Active    *bool    `yaml:"active"`
	Operators []string `yaml:"operators"`
}

type seedOwner struct {
	Key    string `yaml:"key"`
	Name   string `yaml:"name"`
	Active *bool  `yaml:"active"`
}

// LoadSeed reads a seed file. Records are active unless `active: false` is given.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read file: %w", err)
	}
	var raw struct {
		Stations []seedStation `yaml:"stations"`
		Owners   []seedOwner   `yaml:"owners"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("seed: decode yaml: %w", err)
	}

	seed := &Seed{}
	for i, s := range raw.Stations {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("seed: station %d has no id", i)
		}
		seed.Stations = append(seed.Stations, models.Station{
			ID:          strings.TrimSpace(s.ID),
			Name:        s.Name,
			Location:    s.Location,
			IsActive:    s.Active == nil || *s.Active,
			OperatorIDs: s.Operators,
		})
	}
	for i, o := range raw.Owners {
		if strings.TrimSpace(o.Key) == "" {
			return nil, fmt.Errorf("seed: owner %d has no key", i)
		}
		seed.Owners = append(seed.Owners, models.Owner{
			Key:      strings.TrimSpace(o.Key),
			Name:     o.Name,
			IsActive: o.Active == nil || *o.Active,
		})
	}
	return seed, nil
}

type stationUpserter interface {
	Upsert(ctx context.Context, station *models.Station) error
}

type ownerUpserter interface {
	Upsert(ctx context.Context, owner *models.Owner) error
}

// applySeed upserts every record, stopping at the first failure.
func applySeed(ctx context.Context, seed *Seed, stations stationUpserter, owners ownerUpserter) error {
	for i := range seed.Stations {
		if err := stations.Upsert(ctx, &seed.Stations[i]); err != nil {
			return fmt.Errorf("seed station %s: %w", seed.Stations[i].ID, err)
		}
	}
	for i := range seed.Owners {
		if err := owners.Upsert(ctx, &seed.Owners[i]); err != nil {
			return fmt.Errorf("seed owner %s: %w", seed.Owners[i].Key, err)
		}
	}
	return nil
}
