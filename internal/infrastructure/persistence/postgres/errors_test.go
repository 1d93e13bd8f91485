package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

func TestMapSessionConflict(t *testing.T) {
	violation := func(constraint string) error {
		return fmt.Errorf("insert session: %w", &pgconn.PgError{Code: "23505", ConstraintName: constraint})
	}

	assert.ErrorIs(t, mapSessionConflict(violation(indexPendingPair)), shared.ErrPendingRequestExists)
	assert.ErrorIs(t, mapSessionConflict(violation(indexAwaitingSlot)), shared.ErrSlotTaken)
	assert.True(t, shared.IsConflict(mapSessionConflict(violation("sessions_pkey"))))

	assert.Nil(t, mapSessionConflict(&pgconn.PgError{Code: "23503"}))
	assert.Nil(t, mapSessionConflict(errors.New("boom")))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}

func TestColumnHelpers(t *testing.T) {
	assert.Equal(t, 90, durationMinutes(90*time.Minute))
	assert.Nil(t, ratingValue(nil))

	r := session.Rating(4)
	assert.Equal(t, int16(4), *ratingValue(&r))

	at := time.Date(2025, 11, 5, 14, 0, 0, 0, time.FixedZone("ALMT", 5*3600))
	assert.Equal(t, time.UTC, utcPtr(&at).Location())
	assert.True(t, utcPtr(&at).Equal(at))
	assert.Nil(t, utcPtr(nil))
}

func TestMigrationsOrdered(t *testing.T) {
	migrations := GetMigrations()
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, m.Name)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
	assert.Contains(t, migrations[len(migrations)-1].UpSQL, indexAwaitingSlot)
}
