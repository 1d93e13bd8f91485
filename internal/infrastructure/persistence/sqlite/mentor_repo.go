package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

// MentorRepository implements mentor.Repository for SQLite.
type MentorRepository struct {
	store *Store
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
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM mentor_profiles WHERE id = ?`, id)
}

// GetForUpdate returns a mentor profile. IMMEDIATE transactions already
// hold the database write lock, so no row lock is needed.
func (r *MentorRepository) GetForUpdate(ctx context.Context, id string) (*mentor.Profile, error) {
	return r.GetByID(ctx, id)
}

// GetByUserID returns the mentor profile owned by a user.
func (r *MentorRepository) GetByUserID(ctx context.Context, userID string) (*mentor.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM mentor_profiles WHERE user_id = ?`, userID)
}

func (r *MentorRepository) getOne(ctx context.Context, query string, arg string) (*mentor.Profile, error) {
	var (
		p                    mentor.Profile
		careers, windows     string
		minutes              int
		recalculated         sql.NullInt64
		createdAt, updatedAt int64
	)
	err := r.store.querier(ctx).QueryRowContext(ctx, query, arg).Scan(
		&p.ID,
		&p.UserID,
		&p.DisplayName,
		&p.Company,
		&p.JobTitle,
		&p.Bio,
		&p.YearsExperience,
		&p.RatePerChat,
		&p.IsApproved,
		&careers,
		&windows,
		&minutes,
		&p.Stats.Rating,
		&p.Stats.RatedSessions,
		&p.Stats.ChatsCompleted,
		&p.Stats.TotalEarnings,
		&p.Stats.EarningsThisMonth,
		&p.Stats.EarningsLastMonth,
		&recalculated,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrMentorNotFound
		}
		return nil, fmt.Errorf("get mentor profile: %w", err)
	}

	if err := json.Unmarshal([]byte(careers), &p.CareerIDs); err != nil {
		return nil, fmt.Errorf("decode career ids: %w", err)
	}
	if err := json.Unmarshal([]byte(windows), &p.Availability); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	p.SessionDuration = time.Duration(minutes) * time.Minute
	p.Stats.RecalculatedAt = fromNullMillis(recalculated)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// Upsert writes profile fields; stats columns keep their stored values.
func (r *MentorRepository) Upsert(ctx context.Context, p *mentor.Profile) error {
	careers := p.CareerIDs
	if careers == nil {
		careers = []string{}
	}
	careersJSON, err := json.Marshal(careers)
	if err != nil {
		return fmt.Errorf("encode career ids: %w", err)
	}
	windows := p.Availability
	if windows == nil {
		windows = []mentor.WeeklyWindow{}
	}
	windowsJSON, err := json.Marshal(windows)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}

	query := `
		INSERT INTO mentor_profiles (
			id, user_id, display_name, company, job_title, bio, years_experience,
			rate_per_chat, is_approved, career_ids, availability, session_minutes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			company = excluded.company,
			job_title = excluded.job_title,
			bio = excluded.bio,
			years_experience = excluded.years_experience,
			rate_per_chat = excluded.rate_per_chat,
			is_approved = excluded.is_approved,
			career_ids = excluded.career_ids,
			availability = excluded.availability,
			session_minutes = excluded.session_minutes,
			updated_at = excluded.updated_at
	`

	_, err = r.store.querier(ctx).ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.DisplayName,
		p.Company,
		p.JobTitle,
		p.Bio,
		p.YearsExperience,
		p.RatePerChat,
		p.IsApproved,
		string(careersJSON),
		string(windowsJSON),
		int(p.SlotDuration()/time.Minute),
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return shared.WrapError("mentor", "Upsert", shared.ErrAlreadyExists, "user already owns a mentor profile", err)
		}
		return fmt.Errorf("upsert mentor profile: %w", err)
	}
	return nil
}

// SaveStats overwrites the derived aggregates.
func (r *MentorRepository) SaveStats(ctx context.Context, id string, stats mentor.Stats) error {
	query := `
		UPDATE mentor_profiles SET
			rating = ?, rated_sessions = ?, chats_completed = ?, total_earnings = ?,
			earnings_this_month = ?, earnings_last_month = ?, stats_recalculated_at = ?
		WHERE id = ?
	`

	result, err := r.store.querier(ctx).ExecContext(ctx, query,
		stats.Rating,
		stats.RatedSessions,
		stats.ChatsCompleted,
		stats.TotalEarnings,
		stats.EarningsThisMonth,
		stats.EarningsLastMonth,
		toNullMillis(stats.RecalculatedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("save mentor stats: %w", err)
	}
	return requireRow(result, shared.ErrMentorNotFound)
}

// ListIDs returns all mentor profile IDs.
func (r *MentorRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.store.querier(ctx).QueryContext(ctx, `SELECT id FROM mentor_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list mentor ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan mentor id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
