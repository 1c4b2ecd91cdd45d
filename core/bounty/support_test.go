package bounty_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounty-backend/core/bounty"
)

func TestCode(t *testing.T) {
	assert.Equal(t, "", bounty.Code(nil))
	assert.Equal(t, "TaskEnded", bounty.Code(bounty.ErrTaskEnded))
	assert.Equal(t, "ConstraintSeeds", bounty.Code(errors.Wrap(bounty.ErrConstraintSeeds, "submission")))
	assert.Equal(t, "NotFound", bounty.Code(errors.Wrap(errors.Wrap(bounty.ErrNotFound, "x"), "load task")))
	assert.Equal(t, "Internal", bounty.Code(errors.New("boom")))
}

func TestMonotonicClock(t *testing.T) {
	ctx := context.Background()
	inner := bounty.NewManualClock(100)
	clock := bounty.NewMonotonicClock(inner)

	now, err := clock.Now(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 100, now)

	inner.Set(90)
	now, err = clock.Now(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 100, now, "clock must not run backwards")

	inner.Advance(20)
	now, err = clock.Now(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 110, now)
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, "10", bounty.FormatAmount(10_000_000, 6))
	assert.Equal(t, "0.000001", bounty.FormatAmount(1, 6))
	assert.Equal(t, "42", bounty.FormatAmount(42, 0))

	units, err := bounty.ParseAmount("10.5", 6)
	require.NoError(t, err)
	assert.EqualValues(t, 10_500_000, units)

	_, err = bounty.ParseAmount("0.0000001", 6)
	assert.ErrorIs(t, err, bounty.ErrInvalidArgument)
	_, err = bounty.ParseAmount("-1", 6)
	assert.ErrorIs(t, err, bounty.ErrInvalidArgument)
	_, err = bounty.ParseAmount("lots", 6)
	assert.ErrorIs(t, err, bounty.ErrInvalidArgument)
}

func TestEventLogWraps(t *testing.T) {
	l := bounty.NewEventLog(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, l.Publish(context.Background(), bounty.Event{Amount: uint64(i)}))
	}
	recent := l.Recent(0)
	require.Len(t, recent, 3)
	assert.EqualValues(t, 5, recent[0].Amount)
	assert.EqualValues(t, 3, recent[2].Amount)
	assert.Len(t, l.Recent(2), 2)
}

func TestParticipationStatusOnlyAdvances(t *testing.T) {
	assert.True(t, bounty.StatusAccepted.CanAdvanceTo(bounty.StatusSubmitted))
	assert.True(t, bounty.StatusSubmitted.CanAdvanceTo(bounty.StatusCompleted))
	assert.False(t, bounty.StatusSubmitted.CanAdvanceTo(bounty.StatusAccepted))
	assert.False(t, bounty.StatusCompleted.CanAdvanceTo(bounty.StatusCompleted))
}

func TestAddressesAreDeterministic(t *testing.T) {
	d := bounty.Deriver{Program: bounty.DefaultProgramID}
	creator := newKey(t)
	participant := newKey(t)

	a, err := d.Addresses(creator, "same", &participant, nil)
	require.NoError(t, err)
	b, err := d.Addresses(creator, "same", &participant, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := d.Addresses(creator, "other", &participant, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Task, c.Task)
	assert.NotEqual(t, *a.Submission, *c.Submission)
	assert.Nil(t, a.Vault)

	_, err = d.Addresses(creator, "", nil, nil)
	assert.ErrorIs(t, err, bounty.ErrInvalidArgument)
}
