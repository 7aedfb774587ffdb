package wizard

import (
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FrenchMajesty/cluster-curation/pkg/events"
	"github.com/FrenchMajesty/cluster-curation/pkg/types"
	"github.com/FrenchMajesty/cluster-curation/utils/history"
)

// selectionKey is the undo-state field holding the wizard's selection
const selectionKey = "selection"

// Effector is the source of cluster-set changes the wizard follows
type Effector interface {
	OnRequestUndoState(h events.UndoStateHandler) uuid.UUID
	OnCluster(h events.ClusterHandler) uuid.UUID
	Disconnect(id uuid.UUID) bool
}

// Wizard proposes which clusters to inspect next.
//
// It keeps no state about the clusters themselves: ids, status, quality and similarity
// all come from injected functions, so it keeps working after merges and splits
// renumber clusters. It records the selections it shows in its own history, separate
// from any undo stack of the effector it is attached to.
//
// Wizard is not safe for concurrent use.
type Wizard struct {
	clusterIDs ClusterIDsFunc
	status     StatusFunc
	quality    QualityFunc
	similarity SimilarityFunc
	strategy   StrategyFunc

	selection []types.ClusterID
	history   *history.History[[]types.ClusterID]

	bus      *events.Bus
	logger   *slog.Logger
	effector Effector
	subs     []uuid.UUID
}

// Option configures a Wizard
type Option func(*Wizard)

// WithBus sets the bus select events are emitted on
func WithBus(bus *events.Bus) Option {
	return func(w *Wizard) {
		w.bus = bus
	}
}

// WithLogger sets the logger used for diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wizard) {
		w.logger = logger
	}
}

// New creates a wizard with no strategy and a status function reporting StatusNone
func New(opts ...Option) *Wizard {
	w := &Wizard{
		status: func(types.ClusterID) types.Status { return types.StatusNone },
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.bus == nil {
		w.bus = events.NewBus()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.Reset()
	return w
}

// Reset clears the selection and its history
func (w *Wizard) Reset() {
	w.selection = nil
	w.history = history.New[[]types.ClusterID](nil)
}

// Bus returns the bus select events are emitted on
func (w *Wizard) Bus() *events.Bus {
	return w.bus
}

// SetClusterIDsFunction registers the function listing the live cluster ids
func (w *Wizard) SetClusterIDsFunction(fn ClusterIDsFunc) {
	w.clusterIDs = fn
}

// SetStatusFunction registers the function returning a cluster's status
func (w *Wizard) SetStatusFunction(fn StatusFunc) {
	w.status = fn
}

// SetQualityFunction registers the function returning a cluster's quality
func (w *Wizard) SetQualityFunction(fn QualityFunc) {
	w.quality = fn
}

// SetSimilarityFunction registers the function returning the similarity of two clusters
func (w *Wizard) SetSimilarityFunction(fn SimilarityFunc) {
	w.similarity = fn
}

// SetStrategyFunction registers the function proposing the next selection.
// A nil strategy disables Next.
func (w *Wizard) SetStrategyFunction(fn StrategyFunc) {
	w.strategy = fn
}

// ClusterIDs returns the sorted live cluster ids
func (w *Wizard) ClusterIDs() []types.ClusterID {
	if w.clusterIDs == nil {
		return nil
	}
	ids := slices.Clone(w.clusterIDs())
	slices.Sort(ids)
	return ids
}

// NClusters returns the number of live clusters
func (w *Wizard) NClusters() int {
	return len(w.ClusterIDs())
}

// Status returns the status of a cluster
func (w *Wizard) Status(cluster types.ClusterID) types.Status {
	return w.status(cluster)
}

// Selection returns the current selection
func (w *Wizard) Selection() []types.ClusterID {
	return slices.Clone(w.selection)
}

// Best returns the first selected cluster
func (w *Wizard) Best() (types.ClusterID, bool) {
	if len(w.selection) == 0 {
		return 0, false
	}
	return w.selection[0], true
}

// Match returns the second selected cluster
func (w *Wizard) Match() (types.ClusterID, bool) {
	if len(w.selection) < 2 {
		return 0, false
	}
	return w.selection[1], true
}

// Select sets the selection to the given clusters that are still live, records it in
// the history and emits a select event. Stale and duplicate ids are dropped.
func (w *Wizard) Select(clusters []types.ClusterID) []types.ClusterID {
	live := w.ClusterIDs()
	sel := make([]types.ClusterID, 0, len(clusters))
	for _, c := range clusters {
		if slices.Contains(live, c) && !slices.Contains(sel, c) {
			sel = append(sel, c)
		}
	}
	w.selection = sel
	w.history.Add(slices.Clone(sel))
	w.bus.EmitSelect(sel)
	return w.Selection()
}

// adopt sets the selection without recording it in the history
func (w *Wizard) adopt(sel []types.ClusterID) {
	w.selection = slices.Clone(sel)
	w.bus.EmitSelect(w.selection)
}

// Previous goes back to the previously shown selection. Navigation does not add to the
// history, so a later Next returns to where Previous started.
func (w *Wizard) Previous() []types.ClusterID {
	if w.history.CurrentPosition() <= 2 {
		return w.Selection()
	}
	if sel, ok := w.history.Back(); ok && len(sel) > 0 {
		w.adopt(sel)
	}
	return w.Selection()
}

// Next moves forward after a Previous, or asks the strategy for a new selection
func (w *Wizard) Next() []types.ClusterID {
	if !w.history.IsLast() {
		if sel, ok := w.history.Forward(); ok && len(sel) > 0 {
			w.adopt(sel)
		}
		return w.Selection()
	}
	if w.strategy == nil {
		w.logger.Debug("no strategy selected in the wizard")
		return w.Selection()
	}
	next := w.strategy(w.Selection(), w.ClusterIDs(), w.quality, w.status, w.similarity)
	return w.Select(next)
}

// Attach follows an effector: the current selection is reported whenever the effector
// records an undoable action, restored when that action is undone, and any other
// cluster change advances the wizard.
func (w *Wizard) Attach(effector Effector) {
	w.Detach()
	w.effector = effector
	w.subs = []uuid.UUID{
		effector.OnRequestUndoState(w.onRequestUndoState),
		effector.OnCluster(w.onCluster),
	}
}

// Detach stops following the attached effector, if any
func (w *Wizard) Detach() {
	if w.effector == nil {
		return
	}
	for _, id := range w.subs {
		w.effector.Disconnect(id)
	}
	w.effector = nil
	w.subs = nil
}

func (w *Wizard) onRequestUndoState(types.UpdateInfo) *structpb.Struct {
	values := make([]*structpb.Value, len(w.selection))
	for i, c := range w.selection {
		values[i] = structpb.NewNumberValue(float64(c))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		selectionKey: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

func (w *Wizard) onCluster(up types.UpdateInfo) {
	if up.History != types.HistoryUndo {
		w.Next()
		return
	}
	sel, ok := selectionFromUndoState(up.UndoState)
	if !ok {
		w.logger.Debug("undo carries no wizard selection", "update", up.String())
		return
	}
	w.adopt(sel)
}

func selectionFromUndoState(states []*structpb.Struct) ([]types.ClusterID, bool) {
	for _, st := range states {
		v, ok := st.GetFields()[selectionKey]
		if !ok {
			continue
		}
		list := v.GetListValue().GetValues()
		sel := make([]types.ClusterID, len(list))
		for i, item := range list {
			sel[i] = types.ClusterID(item.GetNumberValue())
		}
		return sel, true
	}
	return nil, false
}
