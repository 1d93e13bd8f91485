package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

type panickingJob struct{}

func (panickingJob) Name() string              { return "panics" }
func (panickingJob) Description() string       { return "" }
func (panickingJob) Run(context.Context) error { panic("boom") }

func newTestScheduler(clock timeutil.Clock) *Scheduler {
	return NewScheduler(SchedulerConfig{Clock: clock, TickInterval: time.Hour})
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(nil)
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(job, Every(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "@every 1m0s", jobs[0].Schedule)
	assert.True(t, jobs[0].Enabled)
}

func TestRunDueFollowsClock(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC))
	s := newTestScheduler(clock)
	job := &countingJob{name: "reconcile"}
	require.NoError(t, s.Register(job, Every(10*time.Minute)))
	require.NoError(t, s.Start(context.Background()))

	s.RunDue()
	clock.Advance(10 * time.Minute)
	s.RunDue()
	require.NoError(t, s.Stop())
	assert.Equal(t, int32(1), job.runs.Load())

	info := s.ListJobs()[0]
	assert.Equal(t, int64(1), info.RunCount)
	assert.True(t, info.NextRun.Equal(clock.Now().Add(10*time.Minute)))
}

func TestRunDueSkipsDisabled(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC))
	s := newTestScheduler(clock)
	job := &countingJob{name: "reconcile"}
	require.NoError(t, s.Register(job, Every(time.Minute)))
	require.NoError(t, s.SetEnabled("reconcile", false))
	assert.ErrorIs(t, s.SetEnabled("missing", true), ErrJobNotFound)

	require.NoError(t, s.Start(context.Background()))
	clock.Advance(time.Hour)
	s.RunDue()
	require.NoError(t, s.Stop())
	assert.Zero(t, job.runs.Load())
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(nil)
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("nope")}
	require.NoError(t, s.Register(ok, Every(time.Hour)))
	require.NoError(t, s.Register(failing, Every(time.Hour)))
	require.NoError(t, s.Register(panickingJob{}, Every(time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "failing")
	assert.EqualError(t, err, "nope")

	_, err = s.RunNow(context.Background(), "panics")
	assert.ErrorIs(t, err, ErrJobPanicked)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.History(0)
	require.Len(t, history, 3)
	assert.Equal(t, "panics", history[2].JobName)
	assert.Len(t, s.History(1), 1)
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(nil)
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}
