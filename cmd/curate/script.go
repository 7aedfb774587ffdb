package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	curation "github.com/FrenchMajesty/cluster-curation"
	"github.com/FrenchMajesty/cluster-curation/pkg/types"
)

// Script actions
const (
	ActionSelect   = "select"
	ActionNext     = "next"
	ActionPrevious = "previous"
	ActionMerge    = "merge"
	ActionSplit    = "split"
	ActionGroup    = "group"
	ActionField    = "field"
	ActionUndo     = "undo"
	ActionRedo     = "redo"
)

// Script is a scripted curation session
type Script struct {
	SpikeClusters []types.ClusterID                  `yaml:"spike_clusters"`
	Quality       map[types.ClusterID]float64        `yaml:"quality"`
	Similarity    []SimilarityEntry                  `yaml:"similarity"`
	Metadata      map[types.ClusterID]map[string]any `yaml:"metadata"`
	Steps         []Step                             `yaml:"steps"`
}

// SimilarityEntry is the symmetric similarity of two clusters
type SimilarityEntry struct {
	A     types.ClusterID `yaml:"a"`
	B     types.ClusterID `yaml:"b"`
	Value float64         `yaml:"value"`
}

// Step is one action of a script
type Step struct {
	Action   string            `yaml:"action"`
	Clusters []types.ClusterID `yaml:"clusters"`
	Spikes   []int             `yaml:"spikes"`
	Label    string            `yaml:"label"`
	Field    string            `yaml:"field"`
	Value    any               `yaml:"value"`
}

// StepResult is the JSON line written after each step
type StepResult struct {
	Step      int               `json:"step"`
	Action    string            `json:"action"`
	Update    *UpdateResult     `json:"update,omitempty"`
	Selection []types.ClusterID `json:"selection"`
}

// UpdateResult is the JSON form of an update
type UpdateResult struct {
	Description     string            `json:"description"`
	History         string            `json:"history,omitempty"`
	Deleted         []types.ClusterID `json:"deleted,omitempty"`
	Added           []types.ClusterID `json:"added,omitempty"`
	MetadataChanged []types.ClusterID `json:"metadata_changed,omitempty"`
}

// ParseScript decodes and validates a YAML script
func ParseScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode script: %w", err)
	}
	if len(s.SpikeClusters) == 0 {
		return nil, fmt.Errorf("script has no spike_clusters")
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("invalid step %d: %w", i+1, err)
		}
	}
	return &s, nil
}

func (st Step) validate() error {
	switch st.Action {
	case ActionNext, ActionPrevious, ActionUndo, ActionRedo:
		return nil
	case ActionSelect, ActionMerge:
		if len(st.Clusters) == 0 {
			return fmt.Errorf("%s needs clusters", st.Action)
		}
	case ActionSplit:
		if len(st.Spikes) == 0 {
			return fmt.Errorf("split needs spikes")
		}
	case ActionGroup:
		if len(st.Clusters) == 0 || st.Label == "" {
			return fmt.Errorf("group needs clusters and a label")
		}
	case ActionField:
		if len(st.Clusters) == 0 || st.Field == "" {
			return fmt.Errorf("field needs clusters and a field")
		}
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}

// similarityFunc returns the wizard similarity for the script's table, or nil when empty
func (s *Script) similarityFunc() func(a, b types.ClusterID) float64 {
	if len(s.Similarity) == 0 {
		return nil
	}
	table := make(map[[2]types.ClusterID]float64, 2*len(s.Similarity))
	for _, e := range s.Similarity {
		table[[2]types.ClusterID{e.A, e.B}] = e.Value
		table[[2]types.ClusterID{e.B, e.A}] = e.Value
	}
	return func(a, b types.ClusterID) float64 {
		return table[[2]types.ClusterID{a, b}]
	}
}

// qualityFunc returns the wizard quality for the script's table, or nil when empty
func (s *Script) qualityFunc() func(types.ClusterID) float64 {
	if len(s.Quality) == 0 {
		return nil
	}
	return func(c types.ClusterID) float64 {
		return s.Quality[c]
	}
}

// Run replays the steps on the session, writing one JSON line per step
func (s *Script) Run(session *curation.Session, out io.Writer) error {
	enc := json.NewEncoder(out)
	for i, st := range s.Steps {
		up, err := st.apply(session)
		if err != nil {
			return fmt.Errorf("failed to run step %d (%s): %w", i+1, st.Action, err)
		}
		res := StepResult{
			Step:      i + 1,
			Action:    st.Action,
			Update:    up,
			Selection: session.Selection(),
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to write step %d: %w", i+1, err)
		}
	}
	return nil
}

func (st Step) apply(session *curation.Session) (*UpdateResult, error) {
	var (
		up  types.UpdateInfo
		ok  = true
		err error
	)
	switch st.Action {
	case ActionSelect:
		session.Select(st.Clusters)
		return nil, nil
	case ActionNext:
		session.Next()
		return nil, nil
	case ActionPrevious:
		session.Previous()
		return nil, nil
	case ActionMerge:
		up, err = session.Merge(st.Clusters)
	case ActionSplit:
		up, err = session.Split(st.Spikes)
	case ActionGroup:
		up, err = session.SetGroup(st.Clusters, st.Label)
	case ActionField:
		up, err = session.SetField(st.Field, st.Clusters, st.Value)
	case ActionUndo:
		up, ok = session.Undo()
	case ActionRedo:
		up, ok = session.Redo()
	}
	if err != nil || !ok {
		return nil, err
	}
	return &UpdateResult{
		Description:     up.Description,
		History:         string(up.History),
		Deleted:         up.Deleted,
		Added:           up.Added,
		MetadataChanged: up.MetadataChanged,
	}, nil
}
