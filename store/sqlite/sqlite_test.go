package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/warp/incentive-engine/compensation"
	"github.com/warp/incentive-engine/launch"
	"github.com/warp/incentive-engine/store/sqlite"
	"github.com/warp/incentive-engine/tasklog"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var drivers = []string{sqlite.DriverCGO, sqlite.DriverPureGo}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func openStore(t *testing.T, driver string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(driver, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	err := store.ReplaceCatalog(context.Background(),
		[]compensation.ActivityTier{
			{ActivityName: "Separação", LevelLabel: "Nível 1", UnitValue: dec("0.05"), MinimumProductivity: dec("0"), Unit: "caixas"},
			{ActivityName: "Separação", LevelLabel: "Nível 2", UnitValue: dec("0.10"), MinimumProductivity: dec("10"), Unit: "caixas"},
			{ActivityName: "Conferência", LevelLabel: "Nível 1", UnitValue: dec("0.02"), MinimumProductivity: dec("0"), Unit: "volumes"},
		},
		[]compensation.KPIDefinition{
			{ID: "k1", Name: "Pontualidade", TargetValue: dec("100"), BonusWeight: dec("1"), Shift: compensation.AnyShift, Role: "Conferente", Active: true},
			{ID: "k2", Name: "Zero Avarias", TargetValue: dec("0"), BonusWeight: dec("1.5"), Shift: "Manhã", Role: "Conferente", Active: false},
		},
		tasklog.DefaultTargets(),
	)
	require.NoError(t, err)
}

func pendingLaunch(id, worker, date string) launch.Launch {
	name := "Separação"
	kpis := []string{"Pontualidade"}
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return launch.Launch{
		ID:       id,
		WorkerID: worker,
		Date:     date,
		Role:     "Conferente",
		Shift:    "Manhã",
		Input: compensation.Payload{
			Role:         "Conferente",
			Shift:        "Manhã",
			ActivityName: &name,
			Quantity:     decPtr("100"),
			Hours:        decPtr("10"),
			KPIs:         &kpis,
		},
		Result: compensation.Breakdown{
			ActivitiesSubtotal: dec("5"),
			KPIBonus:           dec("3"),
			TotalCompensation:  dec("5.5"),
			AchievedKPIs:       kpis,
		},
		Status:             launch.StatusPending,
		ActivitiesSubtotal: dec("5"),
		KPIBonus:           dec("3"),
		TotalCompensation:  dec("5.5"),
		CreatedAt:          at,
		UpdatedAt:          at,
	}
}

func event(launchID string, action launch.Action) launch.ApprovalEvent {
	return launch.ApprovalEvent{
		ID:        launchID + "-" + string(action),
		LaunchID:  launchID,
		Action:    action,
		ActorID:   "admin",
		Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestStore_TiersForMatchesIgnoringAccentsAndCase(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, driver)
			seed(t, store)

			tiers, err := store.TiersFor(ctx, "  SEPARACAO ")
			require.NoError(t, err)
			require.Len(t, tiers, 2)
			assert.Equal(t, "Nível 2", tiers[0].LevelLabel)
			assert.True(t, tiers[0].UnitValue.Equal(dec("0.10")))

			none, err := store.TiersFor(ctx, "Embalagem")
			require.NoError(t, err)
			assert.NotNil(t, none)
			assert.Empty(t, none)

			all, err := store.ListTiers(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestStore_KPIsAndTargets(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, driver)
			seed(t, store)

			kpis, err := store.KPIs(ctx)
			require.NoError(t, err)
			require.Len(t, kpis, 2)
			assert.Equal(t, "Pontualidade", kpis[0].Name)
			assert.True(t, kpis[0].Active)
			assert.False(t, kpis[1].Active)
			assert.True(t, kpis[1].BonusWeight.Equal(dec("1.5")))

			targets, err := store.TaskTargets(ctx)
			require.NoError(t, err)
			assert.Equal(t, tasklog.DefaultTargets().Len(), targets.Len())
			tt, ok := targets.Lookup("ARMAZENAGEM")
			require.True(t, ok)
			assert.Equal(t, 5*time.Minute, tt.Target)
		})
	}
}

func TestStore_ReplaceCatalogSwapsEverything(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, sqlite.DriverCGO)
	seed(t, store)

	err := store.ReplaceCatalog(ctx,
		[]compensation.ActivityTier{
			{ActivityName: "Embalagem", LevelLabel: "Único", UnitValue: dec("0.2"), MinimumProductivity: dec("0"), Unit: "caixas"},
		},
		nil,
		tasklog.NewTargetTable(map[string]time.Duration{"Expedição": 2 * time.Minute}),
	)
	require.NoError(t, err)

	old, err := store.TiersFor(ctx, "Separação")
	require.NoError(t, err)
	assert.Empty(t, old)

	kpis, err := store.KPIs(ctx)
	require.NoError(t, err)
	assert.Empty(t, kpis)

	targets, err := store.TaskTargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, targets.Len())
}

func TestStore_ReplaceCatalogRollsBackOnDuplicateThreshold(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, sqlite.DriverCGO)
	seed(t, store)

	err := store.ReplaceCatalog(ctx,
		[]compensation.ActivityTier{
			{ActivityName: "Embalagem", LevelLabel: "A", UnitValue: dec("0.2"), MinimumProductivity: dec("0")},
			{ActivityName: "embalagem", LevelLabel: "B", UnitValue: dec("0.3"), MinimumProductivity: dec("0")},
		},
		nil,
		tasklog.TargetTable{},
	)
	require.Error(t, err)

	// The previous catalog is still in place
	tiers, err := store.TiersFor(ctx, "Separação")
	require.NoError(t, err)
	assert.Len(t, tiers, 2)
}

// =============================================================================
// LAUNCH STORE
// =============================================================================

func TestStore_LaunchRoundTripPreservesDocuments(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, driver)
			l := pendingLaunch("a", "w-1", "2024-03-01")
			require.NoError(t, store.CreateLaunch(ctx, l, event("a", launch.ActionSubmitted)))

			got, err := store.GetLaunch(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, launch.StatusPending, got.Status)
			assert.Equal(t, l.CreatedAt, got.CreatedAt)
			assert.True(t, got.TotalCompensation.Equal(dec("5.5")))
			assert.Nil(t, got.ReviewedBy)
			assert.Nil(t, got.Observations)

			// Absent optional members stay absent
			assert.Nil(t, got.Input.MultipleActivities)
			assert.Nil(t, got.Input.ValidTasksCount)
			require.NotNil(t, got.Input.KPIs)
			assert.Equal(t, []string{"Pontualidade"}, *got.Input.KPIs)
			require.NotNil(t, got.Input.Quantity)
			assert.True(t, got.Input.Quantity.Equal(dec("100")))
			assert.Equal(t, []string{"Pontualidade"}, got.Result.AchievedKPIs)

			_, err = store.GetLaunch(ctx, "missing")
			assert.ErrorIs(t, err, launch.ErrLaunchNotFound)
		})
	}
}

func TestStore_CorruptAmountColumnIsAnError(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "incentive.db")
			store, err := sqlite.Open(driver, path)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			// GIVEN: A stored launch whose total was damaged outside the engine
			require.NoError(t, store.CreateLaunch(ctx, pendingLaunch("l-1", "w-1", "2024-03-01"), event("l-1", launch.ActionSubmitted)))
			raw, err := sql.Open(driver, path)
			require.NoError(t, err)
			_, err = raw.ExecContext(ctx, `UPDATE launches SET total_compensation = 'n/a' WHERE id = 'l-1'`)
			require.NoError(t, err)
			require.NoError(t, raw.Close())

			// WHEN: It is read back
			_, err = store.GetLaunch(ctx, "l-1")

			// THEN: The read fails instead of reporting a zero total
			require.Error(t, err)
			assert.Contains(t, err.Error(), "total_compensation")

			_, err = store.ListLaunches(ctx, launch.Filter{})
			assert.Error(t, err)
		})
	}
}

func TestStore_UniqueActiveLaunchPerDay(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, driver)

			require.NoError(t, store.CreateLaunch(ctx, pendingLaunch("a", "w-1", "2024-03-01"), event("a", launch.ActionSubmitted)))

			err := store.CreateLaunch(ctx, pendingLaunch("b", "w-1", "2024-03-01"), event("b", launch.ActionSubmitted))
			assert.ErrorIs(t, err, launch.ErrDuplicateActiveLaunch)

			// The failed insert left no orphan event behind
			events, err := store.ListEvents(ctx, "b")
			require.NoError(t, err)
			assert.Empty(t, events)

			found, err := store.FindActiveLaunch(ctx, "w-1", "2024-03-01")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "a", found.ID)

			none, err := store.FindActiveLaunch(ctx, "w-1", "2024-03-02")
			require.NoError(t, err)
			assert.Nil(t, none)
		})
	}
}

func TestStore_ConditionalUpdateAndSlotRelease(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			// GIVEN: A pending launch
			ctx := context.Background()
			store := openStore(t, driver)
			l := pendingLaunch("a", "w-1", "2024-03-01")
			require.NoError(t, store.CreateLaunch(ctx, l, event("a", launch.ActionSubmitted)))

			// WHEN: It is rejected
			reviewedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			l.Status = launch.StatusRejected
			l.ReviewedBy = strPtr("admin")
			l.ReviewedAt = &reviewedAt
			l.Observations = strPtr("missing evidence")
			require.NoError(t, store.UpdateLaunch(ctx, l, launch.StatusPending, event("a", launch.ActionRejected)))

			// THEN: A second writer expecting pending loses
			l.Status = launch.StatusApproved
			err := store.UpdateLaunch(ctx, l, launch.StatusPending, event("a", launch.ActionApproved))
			assert.ErrorIs(t, err, launch.ErrConcurrentModification)

			err = store.UpdateLaunch(ctx, pendingLaunch("zz", "w", "2024-03-01"), launch.StatusPending, event("zz", launch.ActionApproved))
			assert.ErrorIs(t, err, launch.ErrLaunchNotFound)

			got, err := store.GetLaunch(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, launch.StatusRejected, got.Status)
			require.NotNil(t, got.ReviewedAt)
			assert.True(t, reviewedAt.Equal(*got.ReviewedAt))
			assert.Equal(t, "missing evidence", *got.Observations)

			events, err := store.ListEvents(ctx, "a")
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, launch.ActionSubmitted, events[0].Action)
			assert.Equal(t, launch.ActionRejected, events[1].Action)

			// AND: The rejected launch no longer holds the day
			require.NoError(t, store.CreateLaunch(ctx, pendingLaunch("b", "w-1", "2024-03-01"), event("b", launch.ActionSubmitted)))
		})
	}
}

func TestStore_ListLaunchesFilters(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, sqlite.DriverCGO)

	for i, slot := range []struct{ worker, date string }{
		{"w-1", "2024-03-01"}, {"w-1", "2024-03-02"}, {"w-2", "2024-03-01"},
	} {
		l := pendingLaunch(fmt.Sprintf("l%d", i), slot.worker, slot.date)
		l.CreatedAt = l.CreatedAt.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.CreateLaunch(ctx, l, event(l.ID, launch.ActionSubmitted)))
	}

	all, err := store.ListLaunches(ctx, launch.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "l0", all[0].ID)

	byWorker, err := store.ListLaunches(ctx, launch.Filter{WorkerID: "w-1"})
	require.NoError(t, err)
	assert.Len(t, byWorker, 2)

	byDate, err := store.ListLaunches(ctx, launch.Filter{Status: launch.StatusPending, Date: "2024-03-01"})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	none, err := store.ListLaunches(ctx, launch.Filter{Status: launch.StatusApproved})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

// =============================================================================
// SERVICE ON SQLITE
// =============================================================================

func newService(t *testing.T, store *sqlite.Store) *launch.Service {
	t.Helper()
	calc := compensation.NewCalculator(store, compensation.DefaultRoleTable())
	svc := launch.NewService(store, calc)
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	var tick, seq atomic.Int64
	svc.Now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }
	svc.NewID = func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }
	return svc
}

func submission(worker, date string) launch.SubmitInput {
	name := "separacao"
	return launch.SubmitInput{
		WorkerID: worker,
		Date:     date,
		Payload: compensation.Payload{
			Role:         "Conferente",
			Shift:        "Manhã",
			ActivityName: &name,
			Quantity:     decPtr("100"),
			Hours:        decPtr("10"),
		},
	}
}

func TestService_ConcurrentSubmissionsOnSQLite(t *testing.T) {
	// GIVEN: A seeded store
	ctx := context.Background()
	store := openStore(t, sqlite.DriverCGO)
	seed(t, store)
	svc := newService(t, store)

	// WHEN: Eight submissions race for the same slot
	var ok, limited atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := svc.Submit(ctx, submission("w-1", "2024-03-01"))
			switch {
			case err == nil:
				ok.Add(1)
			case launch.IsConflict(err):
				limited.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// THEN: Exactly one wins
	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 7, limited.Load())

	launches, err := store.ListLaunches(ctx, launch.Filter{WorkerID: "w-1"})
	require.NoError(t, err)
	assert.Len(t, launches, 1)
}

func TestService_EditAndApproveOnSQLite(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, sqlite.DriverPureGo)
	seed(t, store)
	svc := newService(t, store)

	l, err := svc.Submit(ctx, submission("w-1", "2024-03-01"))
	require.NoError(t, err)
	assert.True(t, l.TotalCompensation.Equal(dec("2.5")), "total %s", l.TotalCompensation)

	edited := submission("w-1", "2024-03-01").Payload
	edited.Quantity = decPtr("200")
	edited.KPIs = &[]string{"Pontualidade"}
	got, err := svc.EditAndApprove(ctx, l.ID, "supervisor", edited, strPtr("recount"))
	require.NoError(t, err)
	assert.Equal(t, launch.StatusEditedApproved, got.Status)

	stored, err := store.GetLaunch(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, launch.StatusEditedApproved, stored.Status)
	require.NotNil(t, stored.EditedBy)
	assert.Equal(t, "supervisor", *stored.EditedBy)
	assert.True(t, stored.TotalCompensation.Equal(got.TotalCompensation))
	require.NotNil(t, stored.Input.KPIs)

	events, err := svc.Events(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, launch.ActionEditedApproved, events[1].Action)

	// Terminal: no further review
	_, err = svc.Reject(ctx, l.ID, "admin", nil)
	assert.ErrorIs(t, err, launch.ErrInvalidTransition)
}
