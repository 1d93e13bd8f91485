package mentor

import "context"

// Repository defines storage operations for mentor profiles. Methods join the
// transaction carried by ctx when one is present.
type Repository interface {
	// GetByID returns a profile by ID.
	// Returns shared.ErrMentorNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Profile, error)

	// GetByUserID returns the profile owned by userID.
	// Returns shared.ErrMentorNotFound if the user has none.
	GetByUserID(ctx context.Context, userID string) (*Profile, error)

	// GetForUpdate returns a profile and holds its row lock until the
	// surrounding transaction ends, so stats writers for one mentor run
	// one at a time. Returns shared.ErrMentorNotFound if it does not exist.
	GetForUpdate(ctx context.Context, id string) (*Profile, error)

	// Upsert writes collaborator-owned profile fields. Stored stats are
	// left untouched on update.
	Upsert(ctx context.Context, p *Profile) error

	// SaveStats overwrites the derived aggregates of a profile.
	// Returns shared.ErrMentorNotFound if it does not exist.
	SaveStats(ctx context.Context, id string, stats Stats) error

	// ListIDs returns the IDs of all profiles ordered by ID.
	ListIDs(ctx context.Context) ([]string, error)
}
