package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

var testNow = time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func seedMentor(t *testing.T, store *Store, id, userID string) *mentor.Profile {
	t.Helper()
	p, err := mentor.NewProfile(mentor.NewProfileParams{
		ID:          id,
		UserID:      userID,
		Company:     "Acme",
		RatePerChat: 5000,
		IsApproved:  true,
		CareerIDs:   []string{"backend"},
		Availability: []mentor.WeeklyWindow{
			{Weekday: time.Wednesday, StartTime: "14:00", EndTime: "16:00"},
		},
		Now: testNow,
	})
	require.NoError(t, err)
	require.NoError(t, store.Mentors().Upsert(context.Background(), p))
	return p
}

func newPending(t *testing.T, id, studentID string, at time.Time) *session.Session {
	t.Helper()
	s, err := session.NewSession(session.NewSessionParams{
		ID:           id,
		StudentID:    studentID,
		MentorID:     "m1",
		MentorUserID: "mentor-user",
		ScheduledAt:  at,
		Duration:     30 * time.Minute,
		RequestedAt:  testNow,
	})
	require.NoError(t, err)
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpenRunsMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booking.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	var n int
	require.NoError(t, store.sqlDB.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMentorRepository_RoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seeded := seedMentor(t, store, "m1", "mentor-user")

	got, err := store.Mentors().GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, seeded.UserID, got.UserID)
	assert.Equal(t, int64(5000), got.RatePerChat)
	assert.True(t, got.IsApproved)
	assert.Equal(t, []string{"backend"}, got.CareerIDs)
	assert.Equal(t, seeded.Availability, got.Availability)
	assert.Equal(t, 30*time.Minute, got.SessionDuration)
	assert.Equal(t, mentor.DefaultRating, got.Stats.Rating)
	assert.Nil(t, got.Stats.RecalculatedAt)

	_, err = store.Mentors().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrMentorNotFound)

	byUser, err := store.Mentors().GetByUserID(ctx, "mentor-user")
	require.NoError(t, err)
	assert.Equal(t, "m1", byUser.ID)

	_, err = store.Mentors().GetByUserID(ctx, "student-1")
	assert.True(t, shared.IsNotFound(err))
}

func TestMentorRepository_UpsertKeepsStats(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	p := seedMentor(t, store, "m1", "mentor-user")

	at := testNow
	require.NoError(t, store.Mentors().SaveStats(ctx, "m1", mentor.Stats{
		Rating: 4.5, RatedSessions: 2, ChatsCompleted: 3, TotalEarnings: 15000, RecalculatedAt: &at,
	}))

	p.Company = "Globex"
	require.NoError(t, store.Mentors().Upsert(ctx, p))

	got, err := store.Mentors().GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Globex", got.Company)
	assert.Equal(t, 4.5, got.Stats.Rating)
	assert.Equal(t, 3, got.Stats.ChatsCompleted)
	require.NotNil(t, got.Stats.RecalculatedAt)
	assert.True(t, at.Equal(*got.Stats.RecalculatedAt))

	err = store.Mentors().SaveStats(ctx, "missing", mentor.EmptyStats())
	assert.ErrorIs(t, err, shared.ErrMentorNotFound)

	ids, err := store.Mentors().ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)
}

func TestSessionRepository_PendingPairIsUnique(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedMentor(t, store, "m1", "mentor-user")
	at := time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Sessions().Create(ctx, newPending(t, "s1", "student-a", at)))

	err := store.Sessions().Create(ctx, newPending(t, "s2", "student-a", at.Add(time.Hour)))
	assert.ErrorIs(t, err, shared.ErrPendingRequestExists)
	assert.True(t, shared.IsConflict(err))

	// A different student may hold a pending request for the same slot.
	require.NoError(t, store.Sessions().Create(ctx, newPending(t, "s3", "student-b", at)))
}

func TestSessionRepository_AwaitingSlotIsUnique(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedMentor(t, store, "m1", "mentor-user")
	at := time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC)

	first := newPending(t, "s1", "student-a", at)
	second := newPending(t, "s2", "student-b", at)
	require.NoError(t, store.Sessions().Create(ctx, first))
	require.NoError(t, store.Sessions().Create(ctx, second))

	first.Status = session.StatusConfirmed
	require.NoError(t, store.Sessions().UpdateStatus(ctx, first, session.StatusPending))

	second.Status = session.StatusConfirmed
	err := store.Sessions().UpdateStatus(ctx, second, session.StatusPending)
	assert.ErrorIs(t, err, shared.ErrSlotTaken)
}

func TestSessionRepository_UpdateStatusIsGuarded(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedMentor(t, store, "m1", "mentor-user")
	s := newPending(t, "s1", "student-a", time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.Sessions().Create(ctx, s))

	approved := s.Clone()
	approved.Status = session.StatusConfirmed
	rejected := s.Clone()
	rejected.Status = session.StatusRejected

	require.NoError(t, store.Sessions().UpdateStatus(ctx, approved, session.StatusPending))
	err := store.Sessions().UpdateStatus(ctx, rejected, session.StatusPending)
	assert.ErrorIs(t, err, shared.ErrStaleSession)
	assert.True(t, shared.IsInvalidTransition(err))

	got, err := store.Sessions().GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusConfirmed, got.Status)
}

func TestSessionRepository_RatingGuard(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedMentor(t, store, "m1", "mentor-user")
	s := newPending(t, "s1", "student-a", time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.Sessions().Create(ctx, s))

	s.Status = session.StatusCompleted
	done := testNow.Add(time.Hour)
	s.CompletedAt = &done
	require.NoError(t, store.Sessions().UpdateStatus(ctx, s, session.StatusPending))

	r := session.Rating(4)
	s.Rating = &r
	s.Feedback = "helpful"
	require.NoError(t, store.Sessions().UpdateRating(ctx, s, false))

	// A second submit racing the first finds a rating already present.
	err := store.Sessions().UpdateRating(ctx, s, false)
	assert.ErrorIs(t, err, shared.ErrStaleRating)

	got, err := store.Sessions().GetByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, session.Rating(4), *got.Rating)
	assert.Equal(t, "helpful", got.Feedback)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))

	completed, err := store.Sessions().ListCompleted(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestSessionRepository_ListFilters(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedMentor(t, store, "m1", "mentor-user")
	base := time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC)

	for i, student := range []string{"a", "b", "c"} {
		require.NoError(t, store.Sessions().Create(ctx, newPending(t, "s-"+student, student, base.Add(time.Duration(i)*time.Hour))))
	}

	all, err := store.Sessions().List(ctx, session.ListFilter{MentorID: "m1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s-a", all[0].ID)

	newest, err := store.Sessions().List(ctx, session.ListFilter{MentorID: "m1", NewestFirst: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, newest, 1)
	assert.Equal(t, "s-c", newest[0].ID)

	byStudent, err := store.Sessions().List(ctx, session.ListFilter{StudentID: "b"})
	require.NoError(t, err)
	require.Len(t, byStudent, 1)

	window, err := store.Sessions().List(ctx, session.ListFilter{
		MentorID:      "m1",
		Statuses:      []session.Status{session.StatusPending},
		ScheduledFrom: base.Add(time.Hour),
		ScheduledTo:   base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "s-b", window[0].ID)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedMentor(t, store, "m1", "mentor-user")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Sessions().Create(ctx, newPending(t, "s1", "a", testNow.Add(48*time.Hour))))
		return shared.ErrSlotTaken
	})
	assert.ErrorIs(t, err, shared.ErrSlotTaken)

	_, err = store.Sessions().GetByID(ctx, "s1")
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestWithinTx_SerialisesConcurrentWriters(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedMentor(t, store, "m1", "mentor-user")
	at := time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC)

	// Each writer checks for an awaiting session at the slot and inserts a
	// confirmed one if none exists. Exactly one must succeed.
	candidates := make([]*session.Session, 5)
	for i := range candidates {
		s := newPending(t, "s"+string(rune('a'+i)), "student"+string(rune('a'+i)), at)
		s.Status = session.StatusConfirmed
		candidates[i] = s
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for _, candidate := range candidates {
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			err := store.WithinTx(ctx, func(ctx context.Context) error {
				existing, err := store.Sessions().List(ctx, session.ListFilter{
					MentorID: "m1",
					Statuses: []session.Status{session.StatusConfirmed},
				})
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					return shared.ErrSlotTaken
				}
				return store.Sessions().Create(ctx, s)
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(candidate)
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestNullMillisRoundTrip(t *testing.T) {
	assert.Nil(t, fromNullMillis(sql.NullInt64{}))
	v := toNullMillis(&testNow)
	require.True(t, v.Valid)
	assert.True(t, testNow.Equal(*fromNullMillis(v)))
}
