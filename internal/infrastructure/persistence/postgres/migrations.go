package postgres

// Index names referenced when mapping unique violations to domain errors.
const (
	indexPendingPair  = "ux_sessions_pending_pair"
	indexAwaitingSlot = "ux_sessions_awaiting_slot"
)

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_mentor_profiles",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_sessions",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: MENTOR PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS mentor_profiles (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    company VARCHAR(200) NOT NULL DEFAULT '',
    job_title VARCHAR(200) NOT NULL DEFAULT '',
    bio TEXT NOT NULL DEFAULT '',
    years_experience INTEGER NOT NULL DEFAULT 0,
    rate_per_chat BIGINT NOT NULL DEFAULT 0,
    is_approved BOOLEAN NOT NULL DEFAULT FALSE,
    career_ids TEXT[] NOT NULL DEFAULT '{}',
    availability JSONB NOT NULL DEFAULT '[]'::jsonb,
    session_minutes INTEGER NOT NULL DEFAULT 30,

    -- Derived from sessions; written only by the stats recalculation.
    rating DOUBLE PRECISION NOT NULL DEFAULT 5.0,
    rated_sessions INTEGER NOT NULL DEFAULT 0,
    chats_completed INTEGER NOT NULL DEFAULT 0,
    total_earnings BIGINT NOT NULL DEFAULT 0,
    earnings_this_month BIGINT NOT NULL DEFAULT 0,
    earnings_last_month BIGINT NOT NULL DEFAULT 0,
    stats_recalculated_at TIMESTAMP WITH TIME ZONE,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_rate CHECK (rate_per_chat >= 0),
    CONSTRAINT valid_session_minutes CHECK (session_minutes > 0),
    CONSTRAINT valid_mentor_rating CHECK (rating >= 1 AND rating <= 5)
);

CREATE INDEX IF NOT EXISTS idx_mentor_profiles_approved ON mentor_profiles(id) WHERE is_approved;
`

const migration001Down = `
DROP TABLE IF EXISTS mentor_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    mentor_profile_id TEXT NOT NULL REFERENCES mentor_profiles(id) ON DELETE RESTRICT,
    mentor_user_id TEXT NOT NULL,
    career_id TEXT NOT NULL DEFAULT '',
    scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_minutes INTEGER NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    student_message TEXT NOT NULL DEFAULT '',
    rejection_reason TEXT NOT NULL DEFAULT '',
    cancelled_by TEXT NOT NULL DEFAULT '',
    requested_at TIMESTAMP WITH TIME ZONE NOT NULL,
    responded_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    rating SMALLINT,
    feedback TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_session_status CHECK (status IN
        ('pending', 'confirmed', 'scheduled', 'completed', 'cancelled', 'rejected', 'no_show')),
    CONSTRAINT valid_session_rating CHECK (rating IS NULL OR (rating BETWEEN 1 AND 5)),
    CONSTRAINT rating_only_when_completed CHECK (rating IS NULL OR status = 'completed'),
    CONSTRAINT completed_at_only_when_completed CHECK ((status = 'completed') = (completed_at IS NOT NULL)),
    CONSTRAINT valid_duration CHECK (duration_minutes > 0)
);

CREATE INDEX IF NOT EXISTS idx_sessions_student_id ON sessions(student_id);
CREATE INDEX IF NOT EXISTS idx_sessions_mentor_profile_id ON sessions(mentor_profile_id);
CREATE INDEX IF NOT EXISTS idx_sessions_mentor_status ON sessions(mentor_profile_id, status);

-- At most one pending request per (student, mentor).
CREATE UNIQUE INDEX IF NOT EXISTS ux_sessions_pending_pair
    ON sessions(student_id, mentor_profile_id) WHERE status = 'pending';

-- At most one awaiting session per mentor slot.
CREATE UNIQUE INDEX IF NOT EXISTS ux_sessions_awaiting_slot
    ON sessions(mentor_profile_id, scheduled_at) WHERE status IN ('confirmed', 'scheduled');
`

const migration002Down = `
DROP TABLE IF EXISTS sessions;
`
