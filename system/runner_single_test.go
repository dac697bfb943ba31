package system_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/system"
)

func TestSingleThreadedRunnerStepPropagatesThroughAllClasses(t *testing.T) {
	sys, aRec, _, cRec := buildThreeClassSystem(t)
	m := newTestMapper(t)
	seedRoot(t, m, aRec, 0, 3)

	runner := system.NewSingleThreadedRunner(sys, 0)
	ctx := context.Background()

	// Classes run in graph order, so the first Step already carries A's
	// three seeded events through B to C; the later Steps find nothing new.
	for i := 0; i < 3; i++ {
		_, err := runner.Step(ctx)
		require.NoError(t, err)
	}

	max, err := cRec.MaxNotificationID(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(3), max)
}

func TestSingleThreadedRunnerStepReportsNoProgressWhenCaughtUp(t *testing.T) {
	sys, aRec, _, _ := buildThreeClassSystem(t)
	m := newTestMapper(t)
	seedRoot(t, m, aRec, 0, 1)

	runner := system.NewSingleThreadedRunner(sys, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := runner.Step(ctx)
		require.NoError(t, err)
	}

	progressed, err := runner.Step(ctx)
	require.NoError(t, err)
	require.False(t, progressed)
}

func TestSingleThreadedRunnerRunStopsOnContextCancel(t *testing.T) {
	sys, aRec, _, _ := buildThreeClassSystem(t)
	m := newTestMapper(t)
	seedRoot(t, m, aRec, 0, 1)

	runner := system.NewSingleThreadedRunner(sys, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := runner.Run(ctx, 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
