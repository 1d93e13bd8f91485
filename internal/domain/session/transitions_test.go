package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

var (
	slotAt  = time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC) // 14:00 Asia/Almaty
	student = shared.Caller{UserID: "student-1", Role: shared.RoleStudent}
	mentor  = shared.Caller{UserID: "mentor-user", Role: shared.RoleMentor}
	outside = shared.Caller{UserID: "someone-else", Role: shared.RoleStudent}
)

func newTestSession(t *testing.T, status Status) *Session {
	t.Helper()
	s, err := NewSession(NewSessionParams{
		ID:           "s1",
		StudentID:    student.UserID,
		MentorID:     "m1",
		MentorUserID: mentor.UserID,
		ScheduledAt:  slotAt,
		Duration:     30 * time.Minute,
		RequestedAt:  slotAt.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	s.Status = status
	return s
}

func TestTransitionTableClosure(t *testing.T) {
	targets := make(map[Status]bool)
	for _, tr := range Transitions() {
		assert.True(t, tr.To.IsValid(), "target %q", tr.To)
		assert.False(t, tr.From.IsTerminal(), "terminal phase %s has an edge", tr.From)
		targets[tr.To] = true
	}

	for _, st := range []Status{StatusConfirmed, StatusRejected, StatusCancelled, StatusCompleted, StatusNoShow} {
		assert.True(t, targets[st], "%s is unreachable", st)
	}
	assert.False(t, targets[StatusPending], "nothing returns to pending")
	assert.False(t, targets[StatusScheduled], "scheduled is a legacy label only")
}

func TestTerminalStatusesRejectEveryAction(t *testing.T) {
	actions := []Action{ActionApprove, ActionReject, ActionCancel, ActionComplete, ActionMarkNoShow}
	after := slotAt.Add(24 * time.Hour)

	for _, st := range AllStatuses {
		if !st.IsTerminal() {
			continue
		}
		for _, action := range actions {
			s := newTestSession(t, st)
			_, err := Decide(s, mentor, action, after)
			assert.Truef(t, shared.IsInvalidTransition(err), "%s from %s: %v", action, st, err)
		}
	}
}

func TestScheduledBehavesLikeConfirmed(t *testing.T) {
	after := slotAt.Add(time.Hour)
	for _, st := range []Status{StatusConfirmed, StatusScheduled} {
		s := newTestSession(t, st)
		require.NoError(t, s.Complete(student, after), st)
		assert.Equal(t, StatusCompleted, s.Status)
	}
}

func TestDecideActorRules(t *testing.T) {
	before := slotAt.Add(-time.Hour)

	t.Run("non participant", func(t *testing.T) {
		_, err := Decide(newTestSession(t, StatusPending), outside, ActionCancel, before)
		assert.ErrorIs(t, err, shared.ErrNotParticipant)
		assert.True(t, shared.IsUnauthorized(err))
	})

	t.Run("student cannot approve", func(t *testing.T) {
		_, err := Decide(newTestSession(t, StatusPending), student, ActionApprove, before)
		assert.ErrorIs(t, err, shared.ErrNotSessionMentor)
	})

	t.Run("student cannot mark no-show", func(t *testing.T) {
		_, err := Decide(newTestSession(t, StatusConfirmed), student, ActionMarkNoShow, slotAt.Add(time.Hour))
		assert.ErrorIs(t, err, shared.ErrNotSessionMentor)
	})

	t.Run("either party cancels", func(t *testing.T) {
		for _, c := range []shared.Caller{student, mentor} {
			to, err := Decide(newTestSession(t, StatusConfirmed), c, ActionCancel, before)
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, to)
		}
	})

	t.Run("admin role alone is not a party", func(t *testing.T) {
		admin := shared.Caller{UserID: "admin", Role: shared.RoleAdmin}
		_, err := Decide(newTestSession(t, StatusPending), admin, ActionApprove, before)
		assert.ErrorIs(t, err, shared.ErrNotParticipant)
	})
}

func TestCanComplete(t *testing.T) {
	tests := []struct {
		status Status
		now    time.Time
		want   bool
	}{
		{StatusConfirmed, slotAt.Add(-time.Minute), false},
		{StatusConfirmed, slotAt, true},
		{StatusScheduled, slotAt.Add(time.Hour), true},
		{StatusPending, slotAt.Add(time.Hour), false},
		{StatusCompleted, slotAt.Add(time.Hour), false},
		{StatusCancelled, slotAt.Add(time.Hour), false},
	}
	for _, tt := range tests {
		s := newTestSession(t, tt.status)
		assert.Equal(t, tt.want, s.CanComplete(tt.now), "%s at %s", tt.status, tt.now)
	}
}

func TestCompleteBeforeStartFails(t *testing.T) {
	s := newTestSession(t, StatusConfirmed)
	err := s.Complete(mentor, slotAt.Add(-time.Minute))
	assert.ErrorIs(t, err, shared.ErrCannotComplete)
	assert.Equal(t, StatusConfirmed, s.Status)
	assert.Nil(t, s.CompletedAt)
}

func TestCompleteSetsCompletedAtOnce(t *testing.T) {
	s := newTestSession(t, StatusConfirmed)
	at := slotAt.Add(40 * time.Minute)
	require.NoError(t, s.Complete(student, at))
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, at, *s.CompletedAt)

	err := s.Complete(student, at.Add(time.Hour))
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, at, *s.CompletedAt)
}

func TestMarkNoShowWaitsForSlotEnd(t *testing.T) {
	s := newTestSession(t, StatusConfirmed)
	assert.ErrorIs(t, s.MarkNoShow(mentor, slotAt.Add(10*time.Minute)), shared.ErrNoShowTooEarly)

	require.NoError(t, s.MarkNoShow(mentor, s.EndsAt()))
	assert.Equal(t, StatusNoShow, s.Status)
}

func TestApproveAndReject(t *testing.T) {
	now := slotAt.Add(-24 * time.Hour)

	approved := newTestSession(t, StatusPending)
	require.NoError(t, approved.Approve(mentor, now))
	assert.Equal(t, StatusConfirmed, approved.Status)
	require.NotNil(t, approved.RespondedAt)

	err := approved.Approve(mentor, now)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	rejected := newTestSession(t, StatusPending)
	require.NoError(t, rejected.Reject(mentor, "  traveling  ", now))
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "traveling", rejected.RejectionReason)

	assert.True(t, shared.IsInvalidTransition(rejected.Approve(mentor, now)))
}

func TestCancelRecordsActor(t *testing.T) {
	s := newTestSession(t, StatusPending)
	require.NoError(t, s.Cancel(student, slotAt.Add(-time.Hour)))
	assert.Equal(t, StatusCancelled, s.Status)
	assert.Equal(t, student.UserID, s.CancelledBy)
}
