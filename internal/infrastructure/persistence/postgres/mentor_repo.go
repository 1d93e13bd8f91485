package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MENTOR REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MentorRepository implements mentor.Repository for PostgreSQL.
type MentorRepository struct {
	conn *Connection
}

// NewMentorRepository creates a new MentorRepository.
func NewMentorRepository(conn *Connection) *MentorRepository {
	return &MentorRepository{conn: conn}
}

var _ mentor.Repository = (*MentorRepository)(nil)

const profileColumns = `
	id, user_id, display_name, company, job_title, bio, years_experience,
	rate_per_chat, is_approved, career_ids, availability, session_minutes,
	rating, rated_sessions, chats_completed, total_earnings,
	earnings_this_month, earnings_last_month, stats_recalculated_at,
	created_at, updated_at`

// GetByID returns a mentor profile by ID.
func (r *MentorRepository) GetByID(ctx context.Context, id string) (*mentor.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM mentor_profiles WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetForUpdate returns a mentor profile and locks its row for the rest of
// the transaction.
func (r *MentorRepository) GetForUpdate(ctx context.Context, id string) (*mentor.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM mentor_profiles WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

// GetByUserID returns the mentor profile owned by a user.
func (r *MentorRepository) GetByUserID(ctx context.Context, userID string) (*mentor.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM mentor_profiles WHERE user_id = $1`
	return r.getOne(ctx, query, userID)
}

func (r *MentorRepository) getOne(ctx context.Context, query string, arg string) (*mentor.Profile, error) {
	p, err := scanProfile(r.conn.querier(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMentorNotFound
		}
		return nil, fmt.Errorf("failed to get mentor profile: %w", err)
	}
	return p, nil
}

// Upsert writes profile fields; stats columns keep their stored values.
func (r *MentorRepository) Upsert(ctx context.Context, p *mentor.Profile) error {
	availability, err := json.Marshal(p.Availability)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}
	careers := p.CareerIDs
	if careers == nil {
		careers = []string{}
	}

	query := `
		INSERT INTO mentor_profiles (
			id, user_id, display_name, company, job_title, bio, years_experience,
			rate_per_chat, is_approved, career_ids, availability, session_minutes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			display_name = EXCLUDED.display_name,
			company = EXCLUDED.company,
			job_title = EXCLUDED.job_title,
			bio = EXCLUDED.bio,
			years_experience = EXCLUDED.years_experience,
			rate_per_chat = EXCLUDED.rate_per_chat,
			is_approved = EXCLUDED.is_approved,
			career_ids = EXCLUDED.career_ids,
			availability = EXCLUDED.availability,
			session_minutes = EXCLUDED.session_minutes,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.conn.querier(ctx).Exec(ctx, query,
		p.ID,
		p.UserID,
		p.DisplayName,
		p.Company,
		p.JobTitle,
		p.Bio,
		p.YearsExperience,
		p.RatePerChat,
		p.IsApproved,
		careers,
		availability,
		durationMinutes(p.SlotDuration()),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("mentor", "Upsert", shared.ErrAlreadyExists, "user already owns a mentor profile", err)
		}
		return fmt.Errorf("failed to upsert mentor profile: %w", err)
	}
	return nil
}

// SaveStats overwrites the derived aggregates.
func (r *MentorRepository) SaveStats(ctx context.Context, id string, stats mentor.Stats) error {
	query := `
		UPDATE mentor_profiles SET
			rating = $2,
			rated_sessions = $3,
			chats_completed = $4,
			total_earnings = $5,
			earnings_this_month = $6,
			earnings_last_month = $7,
			stats_recalculated_at = $8
		WHERE id = $1
	`

	result, err := r.conn.querier(ctx).Exec(ctx, query,
		id,
		stats.Rating,
		stats.RatedSessions,
		stats.ChatsCompleted,
		stats.TotalEarnings,
		stats.EarningsThisMonth,
		stats.EarningsLastMonth,
		stats.RecalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save mentor stats: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrMentorNotFound
	}
	return nil
}

// ListIDs returns all mentor profile IDs.
func (r *MentorRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn.querier(ctx).Query(ctx, `SELECT id FROM mentor_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentor ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan mentor ids: %w", err)
	}
	return ids, nil
}

func scanProfile(row pgx.Row) (*mentor.Profile, error) {
	var (
		p            mentor.Profile
		availability []byte
		minutes      int
		recalculated *time.Time
	)

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.DisplayName,
		&p.Company,
		&p.JobTitle,
		&p.Bio,
		&p.YearsExperience,
		&p.RatePerChat,
		&p.IsApproved,
		&p.CareerIDs,
		&availability,
		&minutes,
		&p.Stats.Rating,
		&p.Stats.RatedSessions,
		&p.Stats.ChatsCompleted,
		&p.Stats.TotalEarnings,
		&p.Stats.EarningsThisMonth,
		&p.Stats.EarningsLastMonth,
		&recalculated,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &p.Availability); err != nil {
			return nil, fmt.Errorf("failed to unmarshal availability: %w", err)
		}
	}
	p.SessionDuration = time.Duration(minutes) * time.Minute
	p.Stats.RecalculatedAt = utcPtr(recalculated)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
