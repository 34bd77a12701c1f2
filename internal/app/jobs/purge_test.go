package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("purge ran without a deadline")
	}
	return 3, p.err
}

func TestRegisterPurgeRunsPurger(t *testing.T) {
	c := NewScheduler()
	purger := &countingPurger{}

	id, err := RegisterPurge(c, "@every 1h", purger, time.Second, zerolog.Nop())
	require.NoError(t, err)

	entry := c.Entry(id)
	require.True(t, entry.Valid())
	entry.Job.Run()

	assert.Equal(t, int32(1), purger.calls.Load())
}

func TestRegisterPurgeRejectsBadSchedule(t *testing.T) {
	_, err := RegisterPurge(NewScheduler(), "every now and then", &countingPurger{}, time.Second, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunPurgeSurvivesFailure(t *testing.T) {
	purger := &countingPurger{err: errors.New("store down")}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	RunPurge(ctx, purger, zerolog.Nop())
	assert.Equal(t, int32(1), purger.calls.Load())
}
