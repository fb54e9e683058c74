// Package profile implements the linear profile completion wizard:
// personal details, then medical history, then an emergency contact.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/platform/clock"
	"github.com/carepoint/portal/internal/platform/storage"
)

// KeyPrefix prefixes the per-user storage key.
const KeyPrefix = "healthcare_profile:"

var (
	ErrStepAhead  = errors.New("step not reached yet")
	ErrIncomplete = errors.New("profile is incomplete")
)

func storageKey(userID string) string { return KeyPrefix + userID }

type Wizard struct {
	mu       sync.Mutex
	profiles *storage.Document[Profile]
	now      clock.Clock
	logger   zerolog.Logger
}

func NewWizard(kv storage.KV, logger zerolog.Logger) *Wizard {
	return &Wizard{
		profiles: storage.NewDocument[Profile](kv, logger),
		now:      clock.System,
		logger:   logger.With().Str("component", "profile_wizard").Logger(),
	}
}

func (w *Wizard) SetClock(c clock.Clock) {
	w.now = c
}

// Get returns the user's profile, or a fresh draft on the first step.
func (w *Wizard) Get(ctx context.Context, userID string) (*Profile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load(ctx, userID)
}

// SubmitStep validates and stores the section for step, then advances to the
// next step. Steps already passed may be resubmitted; later steps may not.
func (w *Wizard) SubmitStep(ctx context.Context, userID string, step Step, data json.RawMessage) (*Profile, error) {
	if !step.Valid() {
		return nil, fmt.Errorf("unknown step: %s", step)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	p, err := w.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if step.index() > p.Step.index() {
		return nil, fmt.Errorf("%w: %s", ErrStepAhead, step)
	}

	switch step {
	case StepPersonal:
		var v Personal
		if err := decode(data, &v); err != nil {
			return nil, err
		}
		if err := v.validate(w.now()); err != nil {
			return nil, err
		}
		p.Personal = &v
	case StepMedical:
		var v Medical
		if err := decode(data, &v); err != nil {
			return nil, err
		}
		if err := v.validate(); err != nil {
			return nil, err
		}
		p.Medical = &v
	case StepEmergency:
		var v Emergency
		if err := decode(data, &v); err != nil {
			return nil, err
		}
		if err := v.validate(); err != nil {
			return nil, err
		}
		p.Emergency = &v
	}

	if i := step.index(); i+1 < len(Steps) && step == p.Step {
		p.Step = Steps[i+1]
	}
	return p, w.save(ctx, p)
}

// Back moves the wizard one step back. On the first step it does nothing.
func (w *Wizard) Back(ctx context.Context, userID string) (*Profile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, err := w.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if i := p.Step.index(); i > 0 {
		p.Step = Steps[i-1]
		return p, w.save(ctx, p)
	}
	return p, nil
}

// Complete finishes the wizard once every section has been submitted.
func (w *Wizard) Complete(ctx context.Context, userID string) (*Profile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, err := w.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if missing := p.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %v", ErrIncomplete, missing)
	}
	now := w.now().UTC()
	p.CompletedAt = &now
	if err := w.save(ctx, p); err != nil {
		return p, err
	}
	w.logger.Info().Str("user_id", userID).Msg("profile completed")
	return p, nil
}

func (w *Wizard) load(ctx context.Context, userID string) (*Profile, error) {
	p, found, err := w.profiles.Load(ctx, storageKey(userID))
	if err != nil {
		w.logger.Error().Err(err).Str("user_id", userID).Msg("load profile")
		return nil, err
	}
	if !found {
		return &Profile{UserID: userID, Step: StepPersonal}, nil
	}
	if !p.Step.Valid() {
		p.Step = StepPersonal
	}
	p.UserID = userID
	return p, nil
}

func (w *Wizard) save(ctx context.Context, p *Profile) error {
	if err := w.profiles.Save(ctx, storageKey(p.UserID), p); err != nil {
		w.logger.Error().Err(err).Str("user_id", p.UserID).Msg("persist profile")
		return err
	}
	return nil
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("step data is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid step data: %w", err)
	}
	return nil
}
