package wizard_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FrenchMajesty/cluster-curation/pkg/events"
	"github.com/FrenchMajesty/cluster-curation/pkg/testutil"
	"github.com/FrenchMajesty/cluster-curation/pkg/types"
	"github.com/FrenchMajesty/cluster-curation/pkg/wizard"
)

func newWizard(t *testing.T, set *testutil.MockClusterSet, opts ...wizard.Option) *wizard.Wizard {
	t.Helper()
	w := wizard.New(opts...)
	w.SetClusterIDsFunction(set.ClusterIDs)
	w.SetQualityFunction(set.Quality)
	w.SetStatusFunction(set.Status)
	w.SetSimilarityFunction(set.Similarity)
	return w
}

func ids(c ...types.ClusterID) []types.ClusterID {
	return c
}

func TestWizard_Empty(t *testing.T) {
	w := wizard.New()

	assert.Empty(t, w.ClusterIDs())
	assert.Equal(t, 0, w.NClusters())
	assert.Empty(t, w.Selection())
	_, ok := w.Best()
	assert.False(t, ok)
	_, ok = w.Match()
	assert.False(t, ok)
	assert.Equal(t, types.StatusNone, w.Status(1))
	assert.Empty(t, w.Previous())
	assert.Empty(t, w.Next())
}

func TestWizard_ClusterIDsAreFreshAndSorted(t *testing.T) {
	set := testutil.NewMockClusterSet(3, 1, 2)
	w := newWizard(t, set)

	assert.Equal(t, ids(1, 2, 3), w.ClusterIDs())
	set.IDs = ids(5, 4)
	assert.Equal(t, ids(4, 5), w.ClusterIDs())
	assert.Equal(t, 2, w.NClusters())
	assert.Equal(t, 3, set.IDCalls)
}

// TestWizard_SelectDropsStaleIDs tests that selection silently filters unknown and duplicate ids
func TestWizard_SelectDropsStaleIDs(t *testing.T) {
	set := testutil.NewMockClusterSet(1, 2, 3)
	w := newWizard(t, set)
	rec := testutil.NewRecorder(w.Bus())

	assert.Equal(t, ids(3, 1), w.Select(ids(3, 10, 1, 3)))
	best, ok := w.Best()
	require.True(t, ok)
	assert.Equal(t, types.ClusterID(3), best)
	match, ok := w.Match()
	require.True(t, ok)
	assert.Equal(t, types.ClusterID(1), match)
	assert.Equal(t, ids(3, 1), rec.LastSelection())

	assert.Empty(t, w.Select(ids(8, 9)))
	assert.Empty(t, w.Selection())
	assert.Len(t, rec.Selections, 2)
}

func TestWizard_PreviousAtStartIsNoop(t *testing.T) {
	set := testutil.NewMockClusterSet(1, 2, 3)
	w := newWizard(t, set)

	assert.Empty(t, w.Previous())

	w.Select(ids(1))
	assert.Equal(t, ids(1), w.Previous())
	assert.Equal(t, ids(1), w.Selection())
}

func TestWizard_PreviousNext(t *testing.T) {
	set := testutil.NewMockClusterSet(1, 2, 3)
	w := newWizard(t, set)

	w.Select(ids(1))
	w.Select(ids(2))
	w.Select(ids(3))

	assert.Equal(t, ids(2), w.Previous())
	assert.Equal(t, ids(1), w.Previous())
	assert.Equal(t, ids(1), w.Previous())

	assert.Equal(t, ids(2), w.Next())
	assert.Equal(t, ids(3), w.Next())
}

// TestWizard_NextAfterPreviousDoesNotPush tests that replaying forward keeps the history intact
func TestWizard_NextAfterPreviousDoesNotPush(t *testing.T) {
	set := testutil.NewMockClusterSet(1, 2, 3)
	w := newWizard(t, set)

	w.Select(ids(1))
	w.Select(ids(2))
	w.Select(ids(3))

	assert.Equal(t, ids(2), w.Previous())
	assert.Equal(t, ids(3), w.Next())
	// A pushed entry would make this land on 1.
	assert.Equal(t, ids(2), w.Previous())
}

func TestWizard_NextWithoutStrategy(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	set := testutil.NewMockClusterSet(1, 2, 3)
	w := newWizard(t, set, wizard.WithLogger(logger))

	w.Select(ids(1))
	assert.Equal(t, ids(1), w.Next())
	assert.Contains(t, buf.String(), "no strategy selected")
}

func TestWizard_NextWithStrategy(t *testing.T) {
	set := newStrategySet()
	w := newWizard(t, set)
	w.SetStrategyFunction(wizard.BestQualityStrategy)
	rec := testutil.NewRecorder(w.Bus())

	w.Select(ids(4))
	assert.Equal(t, ids(2), w.Next())
	assert.Equal(t, ids(1), w.Next())
	assert.Equal(t, ids(3), w.Next())
	assert.Equal(t, ids(3), rec.LastSelection())

	// Strategy results are new actions: Previous walks back through them.
	assert.Equal(t, ids(1), w.Previous())
	assert.Equal(t, ids(2), w.Previous())
	assert.Equal(t, ids(1), w.Next())
}

func TestWizard_StrategyReceivesInjectedFunctions(t *testing.T) {
	set := testutil.NewMockClusterSet(1, 2, 3)
	w := newWizard(t, set)

	var gotSel, gotIDs []types.ClusterID
	w.SetStrategyFunction(func(sel, clusterIDs []types.ClusterID, quality wizard.QualityFunc, status wizard.StatusFunc, similarity wizard.SimilarityFunc) []types.ClusterID {
		gotSel, gotIDs = sel, clusterIDs
		assert.NotNil(t, quality)
		assert.NotNil(t, status)
		assert.NotNil(t, similarity)
		return ids(2, 3, 7)
	})

	w.Select(ids(1))
	assert.Equal(t, ids(2, 3), w.Next())
	assert.Equal(t, ids(1), gotSel)
	assert.Equal(t, ids(1, 2, 3), gotIDs)
}

func TestWizard_Reset(t *testing.T) {
	set := testutil.NewMockClusterSet(1, 2, 3)
	w := newWizard(t, set)
	w.Select(ids(1))
	w.Select(ids(2))
	w.Select(ids(3))

	w.Reset()
	assert.Empty(t, w.Selection())
	assert.Empty(t, w.Previous())
}

func TestWizard_AttachReportsSelection(t *testing.T) {
	set := testutil.NewMockClusterSet(1, 2, 3)
	bus := events.NewBus()
	w := newWizard(t, set, wizard.WithBus(bus))
	w.Attach(bus)

	w.Select(ids(3, 1))
	states := bus.RequestUndoState(types.UpdateInfo{Description: "merge"})
	require.Len(t, states, 1)

	list := states[0].Fields["selection"].GetListValue().GetValues()
	require.Len(t, list, 2)
	assert.Equal(t, 3.0, list[0].GetNumberValue())
	assert.Equal(t, 1.0, list[1].GetNumberValue())
}

func TestWizard_AttachRestoresOnUndo(t *testing.T) {
	set := testutil.NewMockClusterSet(1, 2, 3, 4)
	bus := events.NewBus()
	w := newWizard(t, set, wizard.WithBus(bus))
	w.Attach(bus)
	rec := testutil.NewRecorder(bus)

	w.Select(ids(1, 2))
	states := bus.RequestUndoState(types.UpdateInfo{Description: "merge"})
	w.Select(ids(4))

	bus.EmitCluster(types.UpdateInfo{
		Deleted:     ids(5),
		Added:       ids(1, 2),
		Description: "merge",
		History:     types.HistoryUndo,
		UndoState:   states,
	})
	assert.Equal(t, ids(1, 2), w.Selection())
	assert.Equal(t, ids(1, 2), rec.LastSelection())
}

func TestWizard_AttachUndoWithoutPayload(t *testing.T) {
	set := testutil.NewMockClusterSet(1, 2)
	bus := events.NewBus()
	w := newWizard(t, set, wizard.WithBus(bus))
	w.Attach(bus)

	w.Select(ids(2))
	other, err := structpb.NewStruct(map[string]any{"scroll": 10})
	require.NoError(t, err)
	bus.EmitCluster(types.UpdateInfo{History: types.HistoryUndo, UndoState: []*structpb.Struct{other}})
	assert.Equal(t, ids(2), w.Selection())
}

func TestWizard_AttachAdvancesOnChange(t *testing.T) {
	set := newStrategySet()
	bus := events.NewBus()
	w := newWizard(t, set, wizard.WithBus(bus))
	w.SetStrategyFunction(wizard.BestQualityStrategy)
	w.Attach(bus)

	w.Select(ids(4))
	bus.EmitCluster(types.UpdateInfo{MetadataChanged: ids(4), Description: "metadata_group"})
	assert.Equal(t, ids(2), w.Selection())

	bus.EmitCluster(types.UpdateInfo{MetadataChanged: ids(2), Description: "metadata_group", History: types.HistoryRedo})
	assert.Equal(t, ids(1), w.Selection())
}

func TestWizard_Detach(t *testing.T) {
	set := newStrategySet()
	bus := events.NewBus()
	w := newWizard(t, set, wizard.WithBus(bus))
	w.SetStrategyFunction(wizard.BestQualityStrategy)
	w.Attach(bus)
	assert.Equal(t, 1, bus.Len(events.EventCluster))
	assert.Equal(t, 1, bus.Len(events.EventRequestUndoState))

	w.Detach()
	assert.Equal(t, 0, bus.Len(events.EventCluster))
	assert.Equal(t, 0, bus.Len(events.EventRequestUndoState))

	w.Select(ids(4))
	bus.EmitCluster(types.UpdateInfo{Description: "merge"})
	assert.Equal(t, ids(4), w.Selection())
	w.Detach()
}
