package clustering

import (
	"errors"
	"fmt"
	"slices"

	"github.com/FrenchMajesty/cluster-curation/pkg/types"
	"github.com/FrenchMajesty/cluster-curation/utils/history"
)

// Action tags
const (
	DescriptionMerge  = "merge"
	DescriptionAssign = "assign"
)

var (
	// ErrUnknownCluster is returned when an operation names a cluster that does not exist
	ErrUnknownCluster = errors.New("unknown cluster")

	// ErrNothingToMerge is returned when a merge names fewer than two distinct clusters
	ErrNothingToMerge = errors.New("at least two clusters are required to merge")

	// ErrEmptySplit is returned when a split names no spikes
	ErrEmptySplit = errors.New("no spikes to split")

	// ErrUnknownSpike is returned when a spike index is out of range
	ErrUnknownSpike = errors.New("unknown spike")
)

// assignment is one undoable reassignment of spikes
type assignment struct {
	spikeIDs []int
	before   []types.ClusterID
	after    []types.ClusterID
	info     types.UpdateInfo
}

// Clustering holds the cluster assignment of every spike.
//
// Merges and splits never reuse a cluster id: new ids are allocated above every id the
// clustering has ever held.
//
// Clustering is not safe for concurrent use.
type Clustering struct {
	spikeClusters []types.ClusterID
	counts        map[types.ClusterID]int
	nextID        types.ClusterID
	history       *history.History[*assignment]
}

// New creates a clustering from the cluster id of each spike
func New(spikeClusters []types.ClusterID) *Clustering {
	c := &Clustering{
		spikeClusters: slices.Clone(spikeClusters),
		history:       history.New[*assignment](nil),
	}
	c.recount()
	for cluster := range c.counts {
		if cluster >= c.nextID {
			c.nextID = cluster + 1
		}
	}
	return c
}

func (c *Clustering) recount() {
	c.counts = make(map[types.ClusterID]int)
	for _, cluster := range c.spikeClusters {
		c.counts[cluster]++
	}
}

// NSpikes returns the number of spikes
func (c *Clustering) NSpikes() int {
	return len(c.spikeClusters)
}

// ClusterIDs returns the sorted ids of the non-empty clusters
func (c *Clustering) ClusterIDs() []types.ClusterID {
	out := make([]types.ClusterID, 0, len(c.counts))
	for cluster := range c.counts {
		out = append(out, cluster)
	}
	slices.Sort(out)
	return out
}

// NClusters returns the number of non-empty clusters
func (c *Clustering) NClusters() int {
	return len(c.counts)
}

// Contains reports whether a cluster is non-empty
func (c *Clustering) Contains(cluster types.ClusterID) bool {
	return c.counts[cluster] > 0
}

// ClusterSize returns the number of spikes in a cluster
func (c *Clustering) ClusterSize(cluster types.ClusterID) int {
	return c.counts[cluster]
}

// ClusterCounts returns the number of spikes in each cluster
func (c *Clustering) ClusterCounts() map[types.ClusterID]int {
	out := make(map[types.ClusterID]int, len(c.counts))
	for cluster, n := range c.counts {
		out[cluster] = n
	}
	return out
}

// SpikeClusters returns a copy of the per-spike assignment
func (c *Clustering) SpikeClusters() []types.ClusterID {
	return slices.Clone(c.spikeClusters)
}

// SpikesInClusters returns the sorted spikes assigned to any of the given clusters
func (c *Clustering) SpikesInClusters(clusters []types.ClusterID) []int {
	var out []int
	for spike, cluster := range c.spikeClusters {
		if slices.Contains(clusters, cluster) {
			out = append(out, spike)
		}
	}
	return out
}

// NewClusterID returns the id the next created cluster will get
func (c *Clustering) NewClusterID() types.ClusterID {
	return c.nextID
}

func (c *Clustering) allocate() types.ClusterID {
	id := c.nextID
	c.nextID++
	return id
}

// Merge moves every spike of the given clusters into a single new cluster
func (c *Clustering) Merge(clusters []types.ClusterID) (types.UpdateInfo, error) {
	deleted := slices.Clone(clusters)
	slices.Sort(deleted)
	deleted = slices.Compact(deleted)
	for _, cluster := range deleted {
		if !c.Contains(cluster) {
			return types.UpdateInfo{}, fmt.Errorf("failed to merge cluster %d: %w", cluster, ErrUnknownCluster)
		}
	}
	if len(deleted) < 2 {
		return types.UpdateInfo{}, ErrNothingToMerge
	}

	to := c.allocate()
	spikes := c.SpikesInClusters(deleted)
	after := make([]types.ClusterID, len(spikes))
	descendants := make([]types.DescendantPair, len(deleted))
	for i := range after {
		after[i] = to
	}
	for i, cluster := range deleted {
		descendants[i] = types.DescendantPair{Ascendant: cluster, Descendant: to}
	}

	return c.do(spikes, after, types.UpdateInfo{
		Deleted:     deleted,
		Added:       []types.ClusterID{to},
		Descendants: descendants,
		Description: DescriptionMerge,
	}), nil
}

// Split moves the given spikes into one new cluster. The spikes left behind in each
// affected cluster move to a new cluster of their own, so every affected cluster is
// replaced.
func (c *Clustering) Split(spikeIDs []int) (types.UpdateInfo, error) {
	spikes := slices.Clone(spikeIDs)
	slices.Sort(spikes)
	spikes = slices.Compact(spikes)
	if len(spikes) == 0 {
		return types.UpdateInfo{}, ErrEmptySplit
	}
	for _, spike := range spikes {
		if spike < 0 || spike >= len(c.spikeClusters) {
			return types.UpdateInfo{}, fmt.Errorf("failed to split spike %d: %w", spike, ErrUnknownSpike)
		}
	}

	var parents []types.ClusterID
	for _, spike := range spikes {
		if p := c.spikeClusters[spike]; !slices.Contains(parents, p) {
			parents = append(parents, p)
		}
	}
	slices.Sort(parents)

	to := c.allocate()
	remainders := make(map[types.ClusterID]types.ClusterID)
	var descendants []types.DescendantPair
	added := []types.ClusterID{to}
	for _, p := range parents {
		descendants = append(descendants, types.DescendantPair{Ascendant: p, Descendant: to})
		if c.counts[p] > countIn(c.spikeClusters, spikes, p) {
			r := c.allocate()
			remainders[p] = r
			added = append(added, r)
			descendants = append(descendants, types.DescendantPair{Ascendant: p, Descendant: r})
		}
	}

	moved := c.SpikesInClusters(parents)
	after := make([]types.ClusterID, len(moved))
	for i, spike := range moved {
		if _, ok := slices.BinarySearch(spikes, spike); ok {
			after[i] = to
		} else {
			after[i] = remainders[c.spikeClusters[spike]]
		}
	}

	return c.do(moved, after, types.UpdateInfo{
		Deleted:     parents,
		Added:       added,
		Descendants: descendants,
		Description: DescriptionAssign,
	}), nil
}

func countIn(spikeClusters []types.ClusterID, spikes []int, cluster types.ClusterID) int {
	n := 0
	for _, spike := range spikes {
		if spikeClusters[spike] == cluster {
			n++
		}
	}
	return n
}

func (c *Clustering) do(spikes []int, after []types.ClusterID, info types.UpdateInfo) types.UpdateInfo {
	a := &assignment{
		spikeIDs: spikes,
		before:   make([]types.ClusterID, len(spikes)),
		after:    after,
	}
	for i, spike := range spikes {
		a.before[i] = c.spikeClusters[spike]
	}
	info.SpikeIDs = slices.Clone(spikes)
	a.info = info

	c.assign(spikes, after)
	c.history.Add(a)
	return info
}

func (c *Clustering) assign(spikes []int, clusters []types.ClusterID) {
	for i, spike := range spikes {
		c.spikeClusters[spike] = clusters[i]
	}
	c.recount()
}

// CanUndo reports whether an assignment can be undone
func (c *Clustering) CanUndo() bool {
	return !c.history.IsFirst()
}

// CanRedo reports whether an undone assignment can be redone
func (c *Clustering) CanRedo() bool {
	return !c.history.IsLast()
}

// Undo reverts the most recent assignment. The returned update describes the reverse
// transition: the clusters the assignment created are deleted and its ascendants are
// added back.
func (c *Clustering) Undo() (types.UpdateInfo, bool) {
	if !c.CanUndo() {
		return types.UpdateInfo{}, false
	}
	a := c.history.CurrentItem()
	c.assign(a.spikeIDs, a.before)
	c.history.Back()
	return a.info.Reversed().WithHistory(types.HistoryUndo), true
}

// Redo reapplies the next undone assignment
func (c *Clustering) Redo() (types.UpdateInfo, bool) {
	a, ok := c.history.Forward()
	if !ok {
		return types.UpdateInfo{}, false
	}
	c.assign(a.spikeIDs, a.after)
	return a.info.WithHistory(types.HistoryRedo), true
}
