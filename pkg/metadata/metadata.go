package metadata

import (
	"reflect"
	"slices"

	"github.com/FrenchMajesty/cluster-curation/pkg/types"
)

// DefaultFunc returns the default value of a field for a cluster
type DefaultFunc func(cluster types.ClusterID) any

// DescendantDefaultFunc returns the default value of a field for a cluster created from
// ascendants. ascendantValues is nil when no ascendant information exists.
type DescendantDefaultFunc func(cluster types.ClusterID, ascendantValues []any) any

// Resolver supplies default values for one field. Build it with Plain or DescendantAware.
type Resolver struct {
	plain      DefaultFunc
	descendant DescendantDefaultFunc
}

// Plain returns a resolver that only knows the cluster id
func Plain(fn DefaultFunc) Resolver {
	return Resolver{plain: fn}
}

// DescendantAware returns a resolver that also receives the ascendants' values when a
// cluster is produced by a merge or a split
func DescendantAware(fn DescendantDefaultFunc) Resolver {
	return Resolver{descendant: fn}
}

// IsDescendantAware reports whether the resolver takes ascendant values
func (r Resolver) IsDescendantAware() bool {
	return r.descendant != nil
}

func (r Resolver) resolve(cluster types.ClusterID) any {
	switch {
	case r.descendant != nil:
		return r.descendant(cluster, nil)
	case r.plain != nil:
		return r.plain(cluster)
	}
	return nil
}

// value is the explicit state of one (field, cluster) slot
type value struct {
	v   any
	set bool
}

// change records the explicit state of a slot before and after a write
type change struct {
	field   string
	cluster types.ClusterID
	before  value
	after   value
}

// ClusterMetadata stores per-cluster field values and resolves defaults for the rest.
//
// ClusterMetadata is not safe for concurrent use.
type ClusterMetadata struct {
	data   map[types.ClusterID]map[string]any
	fields map[string]Resolver
	order  []string
}

// New creates a store holding a copy of the given explicit values
func New(data map[types.ClusterID]map[string]any) *ClusterMetadata {
	m := &ClusterMetadata{
		data:   make(map[types.ClusterID]map[string]any, len(data)),
		fields: make(map[string]Resolver),
	}
	for cluster, values := range data {
		for field, v := range values {
			m.Set(field, cluster, v)
		}
	}
	return m
}

// RegisterDefault associates a default resolver with a field, replacing any previous one
func (m *ClusterMetadata) RegisterDefault(field string, r Resolver) {
	if _, ok := m.fields[field]; !ok {
		m.order = append(m.order, field)
	}
	m.fields[field] = r
}

// Fields returns the fields with a registered resolver, in registration order
func (m *ClusterMetadata) Fields() []string {
	return slices.Clone(m.order)
}

// Clusters returns the sorted ids of the clusters holding at least one explicit value
func (m *ClusterMetadata) Clusters() []types.ClusterID {
	out := make([]types.ClusterID, 0, len(m.data))
	for cluster, values := range m.data {
		if len(values) > 0 {
			out = append(out, cluster)
		}
	}
	slices.Sort(out)
	return out
}

// Lookup returns the explicit value of a field for a cluster, if any
func (m *ClusterMetadata) Lookup(field string, cluster types.ClusterID) (any, bool) {
	v, ok := m.data[cluster][field]
	return v, ok
}

// Get returns the value of a field for a cluster. Without an explicit value, the
// field's resolver supplies it; an unregistered field resolves to nil.
func (m *ClusterMetadata) Get(field string, cluster types.ClusterID) any {
	if v, ok := m.Lookup(field, cluster); ok {
		return v
	}
	return m.fields[field].resolve(cluster)
}

// GetMany returns the values of a field for several clusters, in the same order
func (m *ClusterMetadata) GetMany(field string, clusters []types.ClusterID) []any {
	out := make([]any, len(clusters))
	for i, cluster := range clusters {
		out[i] = m.Get(field, cluster)
	}
	return out
}

// Set stores an explicit value, overwriting any previous value or default
func (m *ClusterMetadata) Set(field string, cluster types.ClusterID, v any) {
	values, ok := m.data[cluster]
	if !ok {
		values = make(map[string]any)
		m.data[cluster] = values
	}
	values[field] = v
}

// SetMany stores the same explicit value for several clusters
func (m *ClusterMetadata) SetMany(field string, clusters []types.ClusterID, v any) {
	for _, cluster := range clusters {
		m.Set(field, cluster, v)
	}
}

// Unset removes the explicit value of a field so the default applies again
func (m *ClusterMetadata) Unset(field string, cluster types.ClusterID) {
	values, ok := m.data[cluster]
	if !ok {
		return
	}
	delete(values, field)
	if len(values) == 0 {
		delete(m.data, cluster)
	}
}

// Clone returns an independent copy sharing the registered resolvers
func (m *ClusterMetadata) Clone() *ClusterMetadata {
	out := New(m.data)
	for _, field := range m.order {
		out.RegisterDefault(field, m.fields[field])
	}
	return out
}

// IsAnnotated reports whether a cluster holds an explicit value for the field that
// differs from the field's plain default
func (m *ClusterMetadata) IsAnnotated(field string, cluster types.ClusterID) bool {
	v, ok := m.Lookup(field, cluster)
	if !ok {
		return false
	}
	return !reflect.DeepEqual(v, m.fields[field].resolve(cluster))
}

// SetFromDescendants propagates descendant-aware defaults to the clusters produced by a
// merge or split. For each distinct descendant and each descendant-aware field, the
// resolver receives the ascendants' values in pair order. Annotated descendants are
// never overwritten.
func (m *ClusterMetadata) SetFromDescendants(pairs []types.DescendantPair) []types.ClusterID {
	changes := m.setFromDescendants(pairs)
	return changedClusters(changes)
}

func (m *ClusterMetadata) setFromDescendants(pairs []types.DescendantPair) []change {
	var descendants []types.ClusterID
	ascendants := make(map[types.ClusterID][]types.ClusterID)
	for _, p := range pairs {
		if _, ok := ascendants[p.Descendant]; !ok {
			descendants = append(descendants, p.Descendant)
		}
		if !slices.Contains(ascendants[p.Descendant], p.Ascendant) {
			ascendants[p.Descendant] = append(ascendants[p.Descendant], p.Ascendant)
		}
	}

	// Every value is computed against the state before the call.
	var changes []change
	for _, d := range descendants {
		for _, field := range m.order {
			r := m.fields[field]
			if !r.IsDescendantAware() || m.IsAnnotated(field, d) {
				continue
			}
			v := r.descendant(d, m.GetMany(field, ascendants[d]))
			if reflect.DeepEqual(v, m.Get(field, d)) {
				continue
			}
			before, had := m.Lookup(field, d)
			changes = append(changes, change{
				field:   field,
				cluster: d,
				before:  value{v: before, set: had},
				after:   value{v: v, set: true},
			})
		}
	}
	for _, c := range changes {
		m.apply(c.field, c.cluster, c.after)
	}
	return changes
}

func (m *ClusterMetadata) apply(field string, cluster types.ClusterID, v value) {
	if v.set {
		m.Set(field, cluster, v.v)
	} else {
		m.Unset(field, cluster)
	}
}

func changedClusters(changes []change) []types.ClusterID {
	var out []types.ClusterID
	for _, c := range changes {
		if !slices.Contains(out, c.cluster) {
			out = append(out, c.cluster)
		}
	}
	return out
}
