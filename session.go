package curation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FrenchMajesty/cluster-curation/internal/telemetry"
	"github.com/FrenchMajesty/cluster-curation/pkg/clustering"
	"github.com/FrenchMajesty/cluster-curation/pkg/events"
	"github.com/FrenchMajesty/cluster-curation/pkg/metadata"
	"github.com/FrenchMajesty/cluster-curation/pkg/types"
	"github.com/FrenchMajesty/cluster-curation/pkg/wizard"
	"github.com/FrenchMajesty/cluster-curation/utils/history"
)

var (
	// ErrNoClusters is returned when an annotation names no clusters
	ErrNoClusters = errors.New("no clusters given")

	// ErrUnknownStrategy is returned when the config names a strategy that does not exist
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// step is one entry of the session's undo stack
type step struct {
	clustering bool
	metadata   bool
	undoState  []*structpb.Struct
	info       types.UpdateInfo
}

// Session is a manual curation session over one clustering.
//
// It owns the clustering, the metadata updater and the event bus, and keeps a single
// undo stack across both: a merge or split is one step even though it also propagates
// labels to the new clusters. A wizard is attached to the session and follows every step.
//
// Session is not safe for concurrent use.
type Session struct {
	clustering *clustering.Clustering
	meta       *metadata.Updater
	bus        *events.Bus
	wizard     *wizard.Wizard
	history    *history.History[*step]
	groupField string
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	selectSub  uuid.UUID
}

// NewSession creates a session from the cluster id of each spike
func NewSession(spikeClusters []types.ClusterID, cfg Config) (*Session, error) {
	cfg.applyDefaults()

	var strategy wizard.StrategyFunc
	switch cfg.Strategy {
	case StrategyBestQuality:
		strategy = wizard.BestQualityStrategy
	case StrategyNone:
	default:
		return nil, fmt.Errorf("failed to create session: %w: %q", ErrUnknownStrategy, cfg.Strategy)
	}

	base := metadata.New(cfg.Metadata)
	base.RegisterDefault(cfg.GroupField, metadata.DescendantAware(unanimousLabel))

	s := &Session{
		clustering: clustering.New(spikeClusters),
		meta:       metadata.NewUpdater(base),
		bus:        events.NewBus(),
		history:    history.New[*step](nil),
		groupField: cfg.GroupField,
		logger:     cfg.Logger,
	}
	metrics, err := telemetry.New(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	s.metrics = metrics

	quality := cfg.Quality
	if quality == nil {
		quality = func(c types.ClusterID) float64 {
			return float64(s.clustering.ClusterSize(c))
		}
	}
	similarity := cfg.Similarity
	if similarity == nil {
		similarity = func(types.ClusterID, types.ClusterID) float64 { return 0 }
	}

	s.wizard = wizard.New(wizard.WithBus(s.bus), wizard.WithLogger(cfg.Logger))
	s.wizard.SetClusterIDsFunction(s.clustering.ClusterIDs)
	s.wizard.SetStatusFunction(func(c types.ClusterID) types.Status {
		return wizard.GroupStatus(s.Group(c))
	})
	s.wizard.SetQualityFunction(quality)
	s.wizard.SetSimilarityFunction(similarity)
	s.wizard.SetStrategyFunction(strategy)
	s.wizard.Attach(s)

	s.selectSub = s.bus.OnSelect(func([]types.ClusterID) {
		s.metrics.WizardSelects.Inc()
	})
	s.updateGauges()
	return s, nil
}

// unanimousLabel labels a new cluster with the label its ascendants agree on, if any
func unanimousLabel(_ types.ClusterID, ascendants []any) any {
	if len(ascendants) == 0 {
		return nil
	}
	first, ok := ascendants[0].(string)
	if !ok || first == "" {
		return nil
	}
	for _, v := range ascendants[1:] {
		if label, _ := v.(string); label != first {
			return nil
		}
	}
	return first
}

// OnSelect subscribes to selection changes
func (s *Session) OnSelect(h events.SelectHandler) uuid.UUID {
	return s.bus.OnSelect(h)
}

// OnCluster subscribes to cluster-set and metadata changes
func (s *Session) OnCluster(h events.ClusterHandler) uuid.UUID {
	return s.bus.OnCluster(h)
}

// OnRequestUndoState subscribes a listener whose state is saved with every new step
func (s *Session) OnRequestUndoState(h events.UndoStateHandler) uuid.UUID {
	return s.bus.OnRequestUndoState(h)
}

// Disconnect removes a subscription
func (s *Session) Disconnect(id uuid.UUID) bool {
	return s.bus.Disconnect(id)
}

// Close detaches the wizard and stops counting selections
func (s *Session) Close() {
	s.wizard.Detach()
	s.bus.Disconnect(s.selectSub)
}

// Wizard returns the wizard attached to the session
func (s *Session) Wizard() *wizard.Wizard {
	return s.wizard
}

// ClusterIDs returns the sorted ids of the non-empty clusters
func (s *Session) ClusterIDs() []types.ClusterID {
	return s.clustering.ClusterIDs()
}

// SpikeClusters returns the cluster of every spike
func (s *Session) SpikeClusters() []types.ClusterID {
	return s.clustering.SpikeClusters()
}

// Group returns the label of a cluster, or "" when it has none
func (s *Session) Group(cluster types.ClusterID) string {
	label, _ := s.meta.Get(s.groupField, cluster).(string)
	return label
}

// Field returns the value of a metadata field for a cluster
func (s *Session) Field(field string, cluster types.ClusterID) any {
	return s.meta.Get(field, cluster)
}

// Merge merges clusters into a new one, which inherits their label when they agree
func (s *Session) Merge(clusters []types.ClusterID) (types.UpdateInfo, error) {
	up, err := s.clustering.Merge(clusters)
	if err != nil {
		return types.UpdateInfo{}, err
	}
	return s.recordClustering(up), nil
}

// Split moves spikes into a new cluster. Each cluster they came from is replaced and
// every new cluster inherits its parents' label when they agree.
func (s *Session) Split(spikeIDs []int) (types.UpdateInfo, error) {
	up, err := s.clustering.Split(spikeIDs)
	if err != nil {
		return types.UpdateInfo{}, err
	}
	return s.recordClustering(up), nil
}

func (s *Session) recordClustering(up types.UpdateInfo) types.UpdateInfo {
	metaUp := s.meta.SetFromDescendants(up.Descendants)
	up.MetadataChanged = metaUp.MetadataChanged
	return s.record(&step{clustering: true, metadata: true, info: up})
}

// SetGroup labels clusters as one undoable step
func (s *Session) SetGroup(clusters []types.ClusterID, label string) (types.UpdateInfo, error) {
	return s.SetField(s.groupField, clusters, label)
}

// SetField sets a metadata field on clusters as one undoable step
func (s *Session) SetField(field string, clusters []types.ClusterID, v any) (types.UpdateInfo, error) {
	if len(clusters) == 0 {
		return types.UpdateInfo{}, ErrNoClusters
	}
	for _, c := range clusters {
		if !s.clustering.Contains(c) {
			return types.UpdateInfo{}, fmt.Errorf("failed to set %s on cluster %d: %w", field, c, clustering.ErrUnknownCluster)
		}
	}
	up := s.meta.SetFieldMany(field, clusters, v)
	return s.record(&step{metadata: true, info: up}), nil
}

// record collects the listeners' undo state, pushes the step and notifies listeners
func (s *Session) record(st *step) types.UpdateInfo {
	st.undoState = s.bus.RequestUndoState(st.info)
	st.info.UndoState = nil
	s.history.Add(st)

	s.logger.Debug("recorded action", "update", st.info.String())
	s.metrics.RecordAction(st.info.Description)
	s.updateGauges()

	s.bus.EmitCluster(st.info)
	return st.info
}

// CanUndo reports whether a step can be undone
func (s *Session) CanUndo() bool {
	return !s.history.IsFirst()
}

// CanRedo reports whether an undone step can be redone
func (s *Session) CanRedo() bool {
	return !s.history.IsLast()
}

// Undo reverts the most recent step. The wizard restores the selection it had when the
// step was recorded. It returns false when there is nothing to undo.
func (s *Session) Undo() (types.UpdateInfo, bool) {
	if !s.CanUndo() {
		return types.UpdateInfo{}, false
	}
	st := s.history.CurrentItem()

	var info types.UpdateInfo
	if st.metadata {
		info, _ = s.meta.Undo()
	}
	if st.clustering {
		metaChanged := info.MetadataChanged
		info, _ = s.clustering.Undo()
		info.MetadataChanged = metaChanged
	}
	info.UndoState = st.undoState
	info = info.WithHistory(types.HistoryUndo)
	s.history.Back()

	s.logger.Debug("undo", "update", info.String())
	s.metrics.RecordHistory(string(types.HistoryUndo))
	s.updateGauges()

	s.bus.EmitCluster(info)
	return info, true
}

// Redo reapplies the next undone step. It returns false when there is nothing to redo.
func (s *Session) Redo() (types.UpdateInfo, bool) {
	st, ok := s.history.Forward()
	if !ok {
		return types.UpdateInfo{}, false
	}

	if st.clustering {
		s.clustering.Redo()
	}
	if st.metadata {
		s.meta.Redo()
	}
	info := st.info.WithHistory(types.HistoryRedo)

	s.logger.Debug("redo", "update", info.String())
	s.metrics.RecordHistory(string(types.HistoryRedo))
	s.updateGauges()

	s.bus.EmitCluster(info)
	return info, true
}

// Select selects clusters in the wizard
func (s *Session) Select(clusters []types.ClusterID) []types.ClusterID {
	return s.wizard.Select(clusters)
}

// Selection returns the wizard's current selection
func (s *Session) Selection() []types.ClusterID {
	return s.wizard.Selection()
}

// Next moves the wizard to its next proposal
func (s *Session) Next() []types.ClusterID {
	return s.wizard.Next()
}

// Previous moves the wizard back to its previous selection
func (s *Session) Previous() []types.ClusterID {
	return s.wizard.Previous()
}

// GetMetrics returns current statistics about the session
func (s *Session) GetMetrics() Metrics {
	labeled := 0
	for _, c := range s.clustering.ClusterIDs() {
		if s.Group(c) != "" {
			labeled++
		}
	}
	return Metrics{
		NSpikes:   s.clustering.NSpikes(),
		NClusters: s.clustering.NClusters(),
		NLabeled:  labeled,
		UndoDepth: s.history.CurrentPosition() - 1,
		RedoDepth: s.history.Len() - s.history.CurrentPosition(),
	}
}

func (s *Session) updateGauges() {
	m := s.GetMetrics()
	s.metrics.SetState(m.NClusters, m.UndoDepth, m.RedoDepth)
}
