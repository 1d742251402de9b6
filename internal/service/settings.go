package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/Strob0t/ticketslack/internal/domain"
	"github.com/Strob0t/ticketslack/internal/domain/notify"
	"github.com/Strob0t/ticketslack/internal/port/database"
)

// SettingsService reads and writes the plugin configuration.
type SettingsService struct {
	store   database.SettingsStore
	baseURL string
}

// NewSettingsService creates a SettingsService. baseURL is the help-desk root
// used for ticket links.
func NewSettingsService(store database.SettingsStore, baseURL string) *SettingsService {
	return &SettingsService{store: store, baseURL: baseURL}
}

// Values returns the raw stored settings.
func (s *SettingsService) Values(ctx context.Context) (map[string]string, error) {
	values, err := s.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return values, nil
}

// Snapshot builds a fresh configuration snapshot from the store.
func (s *SettingsService) Snapshot(ctx context.Context) (notify.Config, error) {
	values, err := s.Values(ctx)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.ConfigFromValues(values, s.baseURL), nil
}

// Save validates and persists the given settings. Nothing is written when
// validation fails.
func (s *SettingsService) Save(ctx context.Context, values map[string]string) error {
	known := notify.KnownKeys()
	for key := range values {
		if !slices.Contains(known, key) {
			return fmt.Errorf("%w: unknown setting %q", domain.ErrValidation, key)
		}
	}
	if err := notify.ValidateValues(values); err != nil {
		return err
	}
	if err := s.store.SaveSettings(ctx, values); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
