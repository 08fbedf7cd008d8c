// Package profile keeps the single user's body profile and goal, stored as
// a small TOML file next to the ledger.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

type fileFormat struct {
	Profile models.Profile `toml:"profile"`
}

type Store struct {
	mu      sync.RWMutex
	path    string
	profile models.Profile
	log     *logger.Logger
}

// Open reads the profile at path, falling back to defaults when the file
// does not exist yet.
func Open(path string, defaults models.Profile, log *logger.Logger) (*Store, error) {
	s := &Store{path: path, profile: defaults, log: log}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("profile %s not found, using defaults", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	ff := fileFormat{Profile: defaults}
	if err := toml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := ff.Profile.Validate(); err != nil {
		log.Warn("profile %s rejected (%v), using defaults", path, err)
		return s, nil
	}
	s.profile = ff.Profile
	return s, nil
}

func (s *Store) Get() models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Update validates and stores p. ErrPersistence means p is active in memory
// but was not written.
func (s *Store) Update(p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p

	data, err := toml.Marshal(fileFormat{Profile: p})
	if err != nil {
		return fmt.Errorf("%w: encode profile: %v", models.ErrPersistence, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		s.log.Error("write profile: %v", err)
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	s.log.Info("profile updated: %gcm %gkg age %g %s x%g %+g kcal",
		p.HeightCm, p.WeightKg, p.AgeYears, p.Sex, p.ActivityMultiplier, p.GoalDeltaKcal)
	return nil
}
