// Package command contains the write operations of the booking engine.
// Every command runs inside one storage transaction and publishes its domain
// events only after that transaction commits.
package command

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// ProfileInvalidator drops cached mentor profile views.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, mentorID string) error
}

// NopInvalidator is used when no profile cache is configured.
type NopInvalidator struct{}

// Invalidate implements ProfileInvalidator.
func (NopInvalidator) Invalidate(context.Context, string) error { return nil }

// Deps holds the collaborators shared by the booking commands.
type Deps struct {
	Tx        shared.Transactor
	Sessions  session.Repository
	Mentors   mentor.Repository
	Clock     timeutil.Clock
	Location  *time.Location
	Publisher shared.EventPublisher
	Profiles  ProfileInvalidator
	Logger    *logger.Logger

	// Lookahead limits how far ahead a slot may be booked.
	Lookahead time.Duration

	// NewID generates session IDs.
	NewID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Location == nil {
		d.Location = timeutil.AlmatyTZ
	}
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.Profiles == nil {
		d.Profiles = NopInvalidator{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Lookahead <= 0 {
		d.Lookahead = mentor.DefaultLookahead
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateCommand checks validate tags and reports every failing field in
// one validation error.
func validateCommand(domain, op string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.WrapError(domain, op, shared.ErrValidation, "invalid command", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return shared.NewDomainError(domain, op, shared.ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
	}
}

func requireCaller(domain, op string, caller shared.Caller) error {
	if caller.IsZero() {
		return shared.NewDomainError(domain, op, shared.ErrUnauthenticated, "caller identity is required")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AFTER COMMIT
// ══════════════════════════════════════════════════════════════════════════════

// publishEvents delivers committed events. Failures are logged; the write
// they describe has already happened.
func publishEvents(publisher shared.EventPublisher, log *logger.Logger, events ...shared.Event) {
	for _, e := range events {
		if err := publisher.Publish(e); err != nil {
			log.Warn("event publish failed",
				logger.String("event", string(e.EventType())),
				logger.String("aggregate_id", e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

func invalidateProfile(ctx context.Context, profiles ProfileInvalidator, log *logger.Logger, mentorID string) {
	if err := profiles.Invalidate(ctx, mentorID); err != nil {
		log.Warn("profile cache invalidation failed", logger.MentorID(mentorID), logger.Err(err))
	}
}

func sessionEvent(eventType shared.EventType, s *session.Session, actorID string, from session.Status, at time.Time) shared.SessionEvent {
	e := shared.SessionEvent{
		BaseEvent:    shared.NewBaseEvent(eventType, s.ID, at),
		StudentID:    s.StudentID,
		MentorID:     s.MentorID,
		MentorUserID: s.MentorUserID,
		ActorID:      actorID,
		ToStatus:     s.Status.String(),
		ScheduledAt:  s.ScheduledAt,
	}
	if from != "" {
		e.FromStatus = from.String()
	}
	if s.Status == session.StatusRejected {
		e.Reason = s.RejectionReason
	}
	return e
}
