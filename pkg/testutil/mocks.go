package testutil

import (
	"slices"

	"github.com/FrenchMajesty/cluster-curation/pkg/events"
	"github.com/FrenchMajesty/cluster-curation/pkg/types"
)

// MockClusterSet is a mutable set of clusters backing the wizard's injected functions
type MockClusterSet struct {
	IDs          []types.ClusterID
	Qualities    map[types.ClusterID]float64
	Statuses     map[types.ClusterID]types.Status
	Similarities map[[2]types.ClusterID]float64

	// SimilarityFunc overrides the Similarities table when set
	SimilarityFunc func(a, b types.ClusterID) float64

	IDCalls int
}

// NewMockClusterSet creates a set with the given ids, each with quality equal to its id
func NewMockClusterSet(ids ...types.ClusterID) *MockClusterSet {
	m := &MockClusterSet{
		IDs:          ids,
		Qualities:    make(map[types.ClusterID]float64),
		Statuses:     make(map[types.ClusterID]types.Status),
		Similarities: make(map[[2]types.ClusterID]float64),
	}
	for _, id := range ids {
		m.Qualities[id] = float64(id)
	}
	return m
}

// ClusterIDs returns a copy of the live ids
func (m *MockClusterSet) ClusterIDs() []types.ClusterID {
	m.IDCalls++
	return slices.Clone(m.IDs)
}

// Quality returns the recorded quality, 0 when unknown
func (m *MockClusterSet) Quality(c types.ClusterID) float64 {
	return m.Qualities[c]
}

// Status returns the recorded status, StatusNone when unknown
func (m *MockClusterSet) Status(c types.ClusterID) types.Status {
	return m.Statuses[c]
}

// Similarity returns the recorded similarity of (a, b), 0 when unknown
func (m *MockClusterSet) Similarity(a, b types.ClusterID) float64 {
	if m.SimilarityFunc != nil {
		return m.SimilarityFunc(a, b)
	}
	return m.Similarities[[2]types.ClusterID{a, b}]
}

// SetSimilarity records a symmetric similarity
func (m *MockClusterSet) SetSimilarity(a, b types.ClusterID, v float64) {
	m.Similarities[[2]types.ClusterID{a, b}] = v
	m.Similarities[[2]types.ClusterID{b, a}] = v
}

// Recorder collects every event emitted on a bus
type Recorder struct {
	Selections [][]types.ClusterID
	Updates    []types.UpdateInfo
}

// NewRecorder subscribes a recorder to the bus
func NewRecorder(bus *events.Bus) *Recorder {
	r := &Recorder{}
	bus.OnSelect(func(sel []types.ClusterID) {
		r.Selections = append(r.Selections, sel)
	})
	bus.OnCluster(func(up types.UpdateInfo) {
		r.Updates = append(r.Updates, up)
	})
	return r
}

// LastSelection returns the most recent select payload
func (r *Recorder) LastSelection() []types.ClusterID {
	if len(r.Selections) == 0 {
		return nil
	}
	return r.Selections[len(r.Selections)-1]
}

// LastUpdate returns the most recent cluster payload
func (r *Recorder) LastUpdate() (types.UpdateInfo, bool) {
	if len(r.Updates) == 0 {
		return types.UpdateInfo{}, false
	}
	return r.Updates[len(r.Updates)-1], true
}
