// Package mentor contains the mentor profile aggregate, the weekly
// availability model, and the derivation of mentor statistics.
package mentor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MENTOR PROFILE
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultSessionDuration is the slot length when a profile does not set one.
	DefaultSessionDuration = 30 * time.Minute

	// MaxSessionDuration bounds the slot length of any profile.
	MaxSessionDuration = 8 * time.Hour

	// DefaultLookahead is the booking horizon when none is configured.
	DefaultLookahead = 14 * 24 * time.Hour
)

// Profile is an expert offering sessions on specific topics. Profile fields
// are owned by an upstream collaborator; Stats are derived here.
type Profile struct {
	ID              string
	UserID          string
	DisplayName     string
	Company         string
	JobTitle        string
	Bio             string
	YearsExperience int

	// RatePerChat is the price of one session in minor currency units.
	RatePerChat int64
	IsApproved  bool
	CareerIDs   []string

	Availability    []WeeklyWindow
	SessionDuration time.Duration

	Stats Stats

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfileParams contains the collaborator-owned fields of a profile.
type NewProfileParams struct {
	ID              string
	UserID          string
	DisplayName     string
	Company         string
	JobTitle        string
	Bio             string
	YearsExperience int
	RatePerChat     int64
	IsApproved      bool
	CareerIDs       []string
	Availability    []WeeklyWindow
	SessionDuration time.Duration
	Now             time.Time
}

// NewProfile validates params and returns a profile with default stats.
func NewProfile(params NewProfileParams) (*Profile, error) {
	var errs []error
	if params.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if params.UserID == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if params.RatePerChat < 0 {
		errs = append(errs, errors.New("rate per chat cannot be negative"))
	}
	if params.YearsExperience < 0 {
		errs = append(errs, errors.New("years of experience cannot be negative"))
	}
	duration := params.SessionDuration
	if duration == 0 {
		duration = DefaultSessionDuration
	}
	if duration < time.Minute || duration > MaxSessionDuration || duration%time.Minute != 0 {
		errs = append(errs, fmt.Errorf("session duration %s must be whole minutes up to 8h", duration))
	}
	for i, w := range params.Availability {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("availability[%d]: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return nil, shared.WrapError("mentor", "New", shared.ErrValidation, "invalid profile", errors.Join(errs...))
	}

	now := params.Now.UTC()
	return &Profile{
		ID:              params.ID,
		UserID:          params.UserID,
		DisplayName:     strings.TrimSpace(params.DisplayName),
		Company:         strings.TrimSpace(params.Company),
		JobTitle:        strings.TrimSpace(params.JobTitle),
		Bio:             strings.TrimSpace(params.Bio),
		YearsExperience: params.YearsExperience,
		RatePerChat:     params.RatePerChat,
		IsApproved:      params.IsApproved,
		CareerIDs:       append([]string(nil), params.CareerIDs...),
		Availability:    append([]WeeklyWindow(nil), params.Availability...),
		SessionDuration: duration,
		Stats:           EmptyStats(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// SlotDuration returns the configured slot length or the default.
func (p *Profile) SlotDuration() time.Duration {
	if p.SessionDuration <= 0 {
		return DefaultSessionDuration
	}
	return p.SessionDuration
}

// IsOwnedBy reports whether userID owns this profile.
func (p *Profile) IsOwnedBy(userID string) bool {
	return userID != "" && p.UserID == userID
}

// HasAvailability reports whether any weekly window is configured.
func (p *Profile) HasAvailability() bool {
	return len(p.Availability) > 0
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	c := *p
	c.CareerIDs = append([]string(nil), p.CareerIDs...)
	c.Availability = append([]WeeklyWindow(nil), p.Availability...)
	return &c
}
