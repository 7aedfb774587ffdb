package types

import (
	"fmt"
	"slices"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ClusterID identifies a cluster within one clustering state
type ClusterID int

// Status is the curation status of a cluster, as seen by the wizard
type Status int

const (
	StatusNone Status = iota
	StatusGood
	StatusIgnored
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusIgnored:
		return "ignored"
	default:
		return "none"
	}
}

// HistoryTag marks whether an UpdateInfo is a new action or a history replay
type HistoryTag string

const (
	HistoryNone HistoryTag = ""
	HistoryUndo HistoryTag = "undo"
	HistoryRedo HistoryTag = "redo"
)

// DescendantPair links a cluster consumed by a merge or split to a cluster it produced
type DescendantPair struct {
	Ascendant  ClusterID
	Descendant ClusterID
}

// UpdateInfo describes one transition of the cluster set or of cluster metadata.
// Values are treated as immutable once returned.
type UpdateInfo struct {
	// Deleted lists the clusters removed by the transition
	Deleted []ClusterID

	// Added lists the clusters created by the transition
	Added []ClusterID

	// MetadataChanged lists the clusters whose metadata changed
	MetadataChanged []ClusterID

	// Descendants pairs every deleted ascendant with the clusters it produced
	Descendants []DescendantPair

	// SpikeIDs lists the spikes whose cluster assignment changed
	SpikeIDs []int

	// Description is a short action tag such as "merge", "assign" or "metadata_group"
	Description string

	// History is HistoryNone for new actions, HistoryUndo or HistoryRedo for replays
	History HistoryTag

	// UndoState holds the payloads listeners reported when the action was first performed.
	// It is only populated on undo replays; new actions and redos leave it empty.
	UndoState []*structpb.Struct
}

// Equal reports whether two UpdateInfo values carry the same fields.
// Nil and empty slices compare equal.
func (u UpdateInfo) Equal(other UpdateInfo) bool {
	if u.Description != other.Description || u.History != other.History {
		return false
	}
	if !slices.Equal(u.Deleted, other.Deleted) ||
		!slices.Equal(u.Added, other.Added) ||
		!slices.Equal(u.MetadataChanged, other.MetadataChanged) ||
		!slices.Equal(u.Descendants, other.Descendants) ||
		!slices.Equal(u.SpikeIDs, other.SpikeIDs) {
		return false
	}
	return slices.EqualFunc(u.UndoState, other.UndoState, func(a, b *structpb.Struct) bool {
		return proto.Equal(a, b)
	})
}

// IsEmpty reports whether the transition changed nothing
func (u UpdateInfo) IsEmpty() bool {
	return len(u.Deleted) == 0 && len(u.Added) == 0 && len(u.MetadataChanged) == 0
}

// String renders a compact, log-friendly description
func (u UpdateInfo) String() string {
	var b strings.Builder
	b.WriteString("<")
	if u.History != HistoryNone {
		b.WriteString(string(u.History))
		b.WriteString(" ")
	}
	if u.Description == "" {
		b.WriteString("update")
	} else {
		b.WriteString(u.Description)
	}
	if len(u.Deleted) > 0 {
		fmt.Fprintf(&b, " deleted=%v", u.Deleted)
	}
	if len(u.Added) > 0 {
		fmt.Fprintf(&b, " added=%v", u.Added)
	}
	if len(u.MetadataChanged) > 0 {
		fmt.Fprintf(&b, " metadata_changed=%v", u.MetadataChanged)
	}
	b.WriteString(">")
	return b.String()
}

// WithHistory returns a copy of the update tagged with the given history marker
func (u UpdateInfo) WithHistory(tag HistoryTag) UpdateInfo {
	u.History = tag
	return u
}

// Reversed returns the update describing the inverse transition: added and deleted
// clusters swap and every descendant pair is flipped.
func (u UpdateInfo) Reversed() UpdateInfo {
	out := u
	out.Deleted = slices.Clone(u.Added)
	out.Added = slices.Clone(u.Deleted)
	out.Descendants = nil
	for _, p := range u.Descendants {
		out.Descendants = append(out.Descendants, DescendantPair{Ascendant: p.Descendant, Descendant: p.Ascendant})
	}
	return out
}

// UpdateClusterSelection computes the selection that follows an update: deleted clusters
// are removed (survivors keep their order) and added clusters are appended in order.
func UpdateClusterSelection(selection []ClusterID, up UpdateInfo) []ClusterID {
	out := make([]ClusterID, 0, len(selection)+len(up.Added))
	for _, c := range selection {
		if !slices.Contains(up.Deleted, c) {
			out = append(out, c)
		}
	}
	return append(out, up.Added...)
}
