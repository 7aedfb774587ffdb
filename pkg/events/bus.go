package events

import (
	"slices"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FrenchMajesty/cluster-curation/pkg/types"
)

// Event names
const (
	EventSelect           = "select"
	EventCluster          = "cluster"
	EventRequestUndoState = "request_undo_state"
)

// SelectHandler receives the new cluster selection
type SelectHandler func(selection []types.ClusterID)

// ClusterHandler receives a cluster-set or metadata transition
type ClusterHandler func(up types.UpdateInfo)

// UndoStateHandler reports the state a listener wants restored if the action described
// by up is later undone. Returning nil contributes nothing.
type UndoStateHandler func(up types.UpdateInfo) *structpb.Struct

type subscription[H any] struct {
	id      uuid.UUID
	handler H
}

// Bus dispatches curation events synchronously, in registration order.
//
// Bus is not safe for concurrent use. Handlers run on the caller's goroutine after the
// emitting operation has applied its changes.
type Bus struct {
	selects    []subscription[SelectHandler]
	clusters   []subscription[ClusterHandler]
	undoStates []subscription[UndoStateHandler]
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// OnSelect registers a select handler and returns its subscription id
func (b *Bus) OnSelect(h SelectHandler) uuid.UUID {
	id := uuid.New()
	b.selects = append(b.selects, subscription[SelectHandler]{id: id, handler: h})
	return id
}

// OnCluster registers a cluster handler and returns its subscription id
func (b *Bus) OnCluster(h ClusterHandler) uuid.UUID {
	id := uuid.New()
	b.clusters = append(b.clusters, subscription[ClusterHandler]{id: id, handler: h})
	return id
}

// OnRequestUndoState registers an undo-state reporter and returns its subscription id
func (b *Bus) OnRequestUndoState(h UndoStateHandler) uuid.UUID {
	id := uuid.New()
	b.undoStates = append(b.undoStates, subscription[UndoStateHandler]{id: id, handler: h})
	return id
}

// Disconnect removes a subscription. It returns false if the id is unknown.
func (b *Bus) Disconnect(id uuid.UUID) bool {
	var removed bool
	b.selects, removed = without(b.selects, id, removed)
	b.clusters, removed = without(b.clusters, id, removed)
	b.undoStates, removed = without(b.undoStates, id, removed)
	return removed
}

func without[H any](subs []subscription[H], id uuid.UUID, removed bool) ([]subscription[H], bool) {
	i := slices.IndexFunc(subs, func(s subscription[H]) bool { return s.id == id })
	if i < 0 {
		return subs, removed
	}
	return slices.Delete(subs, i, i+1), true
}

// Len returns the number of handlers registered for an event name
func (b *Bus) Len(event string) int {
	switch event {
	case EventSelect:
		return len(b.selects)
	case EventCluster:
		return len(b.clusters)
	case EventRequestUndoState:
		return len(b.undoStates)
	}
	return 0
}

// EmitSelect notifies every select handler. Each handler gets its own copy.
func (b *Bus) EmitSelect(selection []types.ClusterID) {
	for _, s := range slices.Clone(b.selects) {
		s.handler(slices.Clone(selection))
	}
}

// EmitCluster notifies every cluster handler
func (b *Bus) EmitCluster(up types.UpdateInfo) {
	for _, s := range slices.Clone(b.clusters) {
		s.handler(up)
	}
}

// RequestUndoState collects the undo payloads of every reporter, in registration order.
// Nil payloads are skipped.
func (b *Bus) RequestUndoState(up types.UpdateInfo) []*structpb.Struct {
	var out []*structpb.Struct
	for _, s := range slices.Clone(b.undoStates) {
		if st := s.handler(up); st != nil {
			out = append(out, st)
		}
	}
	return out
}
