package preset

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
)

// Store is the persistence boundary the service talks to. The production
// implementation lives in the repository package; tests may substitute
// their own.
type Store interface {
	InsertPreset(ctx context.Context, p *Preset) (*Preset, error)
	GetPresetByName(ctx context.Context, name string) (*Preset, error)
	GetPresetByID(ctx context.Context, id string) (*Preset, error)
	ListPresets(ctx context.Context) ([]*Preset, error)
	UpdatePreset(ctx context.Context, p *Preset) (*Preset, error)
	DeletePreset(ctx context.Context, name string) error
	UpsertActive(ctx context.Context, contextID, presetID string) error
	GetActivePresetID(ctx context.Context, contextID string) (string, error)
	ClearActive(ctx context.Context, contextID string) error
	ActiveContexts(ctx context.Context) ([]string, error)
}

// Service implements the preset store contract: CRUD over presets and the
// active-preset-per-context pointer, including isolation enforcement.
type Service struct {
	logger *log.Logger
	store  Store
}

func NewService(logger *log.Logger, store Store) *Service {
	return &Service{
		logger: logger,
		store:  store,
	}
}

func (s *Service) Create(ctx context.Context, p *Preset) (*Preset, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.InsertPreset(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Preset created", "name", created.Name, "id", created.ID)
	return created, nil
}

func (s *Service) Get(ctx context.Context, name string) (*Preset, error) {
	return s.store.GetPresetByName(ctx, name)
}

func (s *Service) List(ctx context.Context) ([]*Preset, error) {
	return s.store.ListPresets(ctx)
}

// Update applies a partial patch to the named preset.
func (s *Service) Update(ctx context.Context, name string, patch Patch) (*Preset, error) {
	p, err := s.store.GetPresetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.PromptText != nil {
		p.PromptText = *patch.PromptText
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.IsolationMode != nil {
		p.IsolationMode = *patch.IsolationMode
	}
	if patch.AllowList != nil {
		p.AllowList = *patch.AllowList
	}
	if patch.DenyList != nil {
		p.DenyList = *patch.DenyList
	}
	if patch.TriggerRules != nil {
		p.TriggerRules = *patch.TriggerRules
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdatePreset(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Preset updated", "name", updated.Name, "id", updated.ID)
	return updated, nil
}

// Delete removes the preset. Contexts where it was active lose their
// active pointer (FK cascade in the repository).
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.store.DeletePreset(ctx, name); err != nil {
		return err
	}
	s.logger.Info("Preset deleted", "name", name)
	return nil
}

// GetActive returns the preset active in the context, or nil when none is.
func (s *Service) GetActive(ctx context.Context, contextID string) (*Preset, error) {
	presetID, err := s.store.GetActivePresetID(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if presetID == "" {
		return nil, nil
	}
	p, err := s.store.GetPresetByID(ctx, presetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Stale pointer: preset vanished without the cascade firing.
			_ = s.store.ClearActive(ctx, contextID)
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// SetActive activates the named preset in the context, enforcing the
// preset's isolation rules.
func (s *Service) SetActive(ctx context.Context, contextID, name string) (*Preset, error) {
	p, err := s.store.GetPresetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !p.CanActivate(contextID) {
		return nil, ErrIsolationViolation
	}
	if err := s.store.UpsertActive(ctx, contextID, p.ID); err != nil {
		return nil, err
	}
	s.logger.Info("Preset activated", "name", p.Name, "context_id", contextID)
	return p, nil
}

func (s *Service) ClearActive(ctx context.Context, contextID string) error {
	return s.store.ClearActive(ctx, contextID)
}

// ActiveContexts lists every context that currently has an active preset.
func (s *Service) ActiveContexts(ctx context.Context) ([]string, error) {
	return s.store.ActiveContexts(ctx)
}

// EligiblePresets returns, in creation order, the presets whose isolation
// rules allow activation in the context.
func (s *Service) EligiblePresets(ctx context.Context, contextID string) ([]*Preset, error) {
	all, err := s.store.ListPresets(ctx)
	if err != nil {
		return nil, err
	}
	eligible := make([]*Preset, 0, len(all))
	for _, p := range all {
		if p.CanActivate(contextID) {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}
