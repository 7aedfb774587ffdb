package curation

// Metrics provides statistics about a session's state
type Metrics struct {
	// NSpikes is the number of spikes being curated
	NSpikes int

	// NClusters is the number of non-empty clusters
	NClusters int

	// NLabeled is the number of live clusters with a label
	NLabeled int

	// UndoDepth is the number of actions that can be undone
	UndoDepth int

	// RedoDepth is the number of undone actions that can be redone
	RedoDepth int
}
