package metadata

import (
	"slices"

	"github.com/FrenchMajesty/cluster-curation/pkg/types"
	"github.com/FrenchMajesty/cluster-curation/utils/history"
)

// DescriptionDescendants tags updates produced by descendant propagation
const DescriptionDescendants = "metadata_descendants"

// entry is one undoable step: the update it produced and the slots it touched
type entry struct {
	info    types.UpdateInfo
	changes []change
}

// Updater wraps a ClusterMetadata with transactional setters and undo/redo.
//
// Every setter records the explicit state of each touched slot before and after the
// write, so undo and redo restore exact snapshots rather than replaying patches.
type Updater struct {
	meta    *ClusterMetadata
	history *history.History[*entry]
}

// NewUpdater wraps a copy of the given metadata
func NewUpdater(base *ClusterMetadata) *Updater {
	return &Updater{
		meta:    base.Clone(),
		history: history.New[*entry](nil),
	}
}

// Get returns the value of a field for a cluster
func (u *Updater) Get(field string, cluster types.ClusterID) any {
	return u.meta.Get(field, cluster)
}

// GetMany returns the values of a field for several clusters
func (u *Updater) GetMany(field string, clusters []types.ClusterID) []any {
	return u.meta.GetMany(field, clusters)
}

// Lookup returns the explicit value of a field for a cluster, if any
func (u *Updater) Lookup(field string, cluster types.ClusterID) (any, bool) {
	return u.meta.Lookup(field, cluster)
}

// Fields returns the registered fields
func (u *Updater) Fields() []string {
	return u.meta.Fields()
}

// Snapshot returns an independent copy of the current metadata
func (u *Updater) Snapshot() *ClusterMetadata {
	return u.meta.Clone()
}

// SetField sets a field for one cluster as an undoable action
func (u *Updater) SetField(field string, cluster types.ClusterID, v any) types.UpdateInfo {
	return u.SetFieldMany(field, []types.ClusterID{cluster}, v)
}

// SetFieldMany sets a field for several clusters as a single undoable action
func (u *Updater) SetFieldMany(field string, clusters []types.ClusterID, v any) types.UpdateInfo {
	changes := make([]change, 0, len(clusters))
	for _, cluster := range clusters {
		before, had := u.meta.Lookup(field, cluster)
		changes = append(changes, change{
			field:   field,
			cluster: cluster,
			before:  value{v: before, set: had},
			after:   value{v: v, set: true},
		})
	}
	u.meta.SetMany(field, clusters, v)

	info := types.UpdateInfo{
		MetadataChanged: slices.Clone(clusters),
		Description:     "metadata_" + field,
	}
	u.history.Add(&entry{info: info, changes: changes})
	return info
}

// SetFromDescendants propagates descendant-aware defaults as an undoable action. The
// returned update lists the descendants that actually received a new value.
func (u *Updater) SetFromDescendants(pairs []types.DescendantPair) types.UpdateInfo {
	changes := u.meta.setFromDescendants(pairs)
	info := types.UpdateInfo{
		MetadataChanged: changedClusters(changes),
		Description:     DescriptionDescendants,
	}
	u.history.Add(&entry{info: info, changes: changes})
	return info
}

// CanUndo reports whether an action can be undone
func (u *Updater) CanUndo() bool {
	return !u.history.IsFirst()
}

// CanRedo reports whether an undone action can be redone
func (u *Updater) CanRedo() bool {
	return !u.history.IsLast()
}

// Undo reverts the most recent action. It returns false when there is nothing to undo.
func (u *Updater) Undo() (types.UpdateInfo, bool) {
	if !u.CanUndo() {
		return types.UpdateInfo{}, false
	}
	e := u.history.CurrentItem()
	for i := len(e.changes) - 1; i >= 0; i-- {
		c := e.changes[i]
		u.meta.apply(c.field, c.cluster, c.before)
	}
	u.history.Back()
	return e.info.WithHistory(types.HistoryUndo), true
}

// Redo reapplies the next undone action. It returns false when there is nothing to redo.
func (u *Updater) Redo() (types.UpdateInfo, bool) {
	e, ok := u.history.Forward()
	if !ok {
		return types.UpdateInfo{}, false
	}
	for _, c := range e.changes {
		u.meta.apply(c.field, c.cluster, c.after)
	}
	return e.info.WithHistory(types.HistoryRedo), true
}
