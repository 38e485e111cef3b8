package launch_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/launch"
)

func memLaunch(id, worker, date string, status launch.Status) launch.Launch {
	return launch.Launch{
		ID:        id,
		WorkerID:  worker,
		Date:      date,
		Role:      "Conferente",
		Status:    status,
		Input:     payload("10", "1"),
		CreatedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func event(launchID string, action launch.Action) launch.ApprovalEvent {
	return launch.ApprovalEvent{ID: launchID + "-" + string(action), LaunchID: launchID, Action: action, ActorID: "admin"}
}

func TestMemory_UniqueActiveLaunchPerDay(t *testing.T) {
	ctx := context.Background()
	m := launch.NewMemory()

	require.NoError(t, m.CreateLaunch(ctx, memLaunch("a", "w-1", "2024-03-01", launch.StatusPending), event("a", launch.ActionSubmitted)))

	err := m.CreateLaunch(ctx, memLaunch("b", "w-1", "2024-03-01", launch.StatusPending), event("b", launch.ActionSubmitted))
	assert.ErrorIs(t, err, launch.ErrDuplicateActiveLaunch)

	// A rejected launch never occupies the slot
	require.NoError(t, m.CreateLaunch(ctx, memLaunch("c", "w-1", "2024-03-01", launch.StatusRejected), event("c", launch.ActionRejected)))

	found, err := m.FindActiveLaunch(ctx, "w-1", "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "a", found.ID)

	none, err := m.FindActiveLaunch(ctx, "w-1", "2024-03-02")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMemory_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	m := launch.NewMemory()
	l := memLaunch("a", "w-1", "2024-03-01", launch.StatusPending)
	require.NoError(t, m.CreateLaunch(ctx, l, event("a", launch.ActionSubmitted)))

	l.Status = launch.StatusRejected
	require.NoError(t, m.UpdateLaunch(ctx, l, launch.StatusPending, event("a", launch.ActionRejected)))

	l.Status = launch.StatusApproved
	err := m.UpdateLaunch(ctx, l, launch.StatusPending, event("a", launch.ActionApproved))
	assert.ErrorIs(t, err, launch.ErrConcurrentModification)

	err = m.UpdateLaunch(ctx, memLaunch("zz", "w", "2024-03-01", launch.StatusApproved), launch.StatusPending, event("zz", launch.ActionApproved))
	assert.ErrorIs(t, err, launch.ErrLaunchNotFound)

	events, err := m.ListEvents(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Rejecting freed the slot
	require.NoError(t, m.CreateLaunch(ctx, memLaunch("b", "w-1", "2024-03-01", launch.StatusPending), event("b", launch.ActionSubmitted)))
}

func TestMemory_ReadsAreIsolatedCopies(t *testing.T) {
	ctx := context.Background()
	m := launch.NewMemory()
	l := memLaunch("a", "w-1", "2024-03-01", launch.StatusPending)
	kpis := []string{}
	l.Input.KPIs = &kpis
	require.NoError(t, m.CreateLaunch(ctx, l, event("a", launch.ActionSubmitted)))

	got, err := m.GetLaunch(ctx, "a")
	require.NoError(t, err)
	*got.Input.ActivityName = "changed"

	again, err := m.GetLaunch(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Separação", *again.Input.ActivityName)

	// An empty KPI list stays present and absent keys stay absent
	raw, err := json.Marshal(again.Input)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kpis_atingidos":[]`)
	assert.NotContains(t, string(raw), "multiple_activities")

	_, err = m.GetLaunch(ctx, "missing")
	assert.ErrorIs(t, err, launch.ErrLaunchNotFound)
}

func TestStatus_Predicates(t *testing.T) {
	assert.False(t, launch.StatusPending.IsTerminal())
	for _, s := range []launch.Status{launch.StatusApproved, launch.StatusRejected, launch.StatusEditedApproved} {
		assert.True(t, s.IsTerminal(), string(s))
	}
	assert.False(t, launch.StatusRejected.HoldsDay())
	assert.True(t, launch.StatusEditedApproved.HoldsDay())
	assert.False(t, launch.Status("archived").IsValid())
}
