package curation

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FrenchMajesty/cluster-curation/pkg/types"
	"github.com/FrenchMajesty/cluster-curation/pkg/wizard"
)

const (
	// DefaultGroupField is the metadata field holding the cluster label
	DefaultGroupField = "group"

	// StrategyBestQuality walks clusters by quality, then pairs by similarity
	StrategyBestQuality = "best_quality"

	// StrategyNone disables the wizard's proposals
	StrategyNone = "none"
)

// Config holds configuration for a Session
type Config struct {
	// GroupField is the metadata field used as the cluster label. If empty, uses DefaultGroupField.
	GroupField string

	// Strategy names the wizard strategy. If empty, uses StrategyBestQuality.
	Strategy string

	// Quality ranks clusters for the wizard. If nil, uses the number of spikes in the cluster.
	Quality wizard.QualityFunc

	// Similarity compares two clusters for the wizard. If nil, every pair has similarity 0.
	Similarity wizard.SimilarityFunc

	// Metadata holds the initial explicit annotations, by cluster then field
	Metadata map[types.ClusterID]map[string]any

	// Logger receives diagnostics. If nil, uses slog.Default().
	Logger *slog.Logger

	// Registerer receives the session metrics. If nil, metrics go to a private registry.
	Registerer prometheus.Registerer
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if c.GroupField == "" {
		c.GroupField = DefaultGroupField
	}

	if c.Strategy == "" {
		c.Strategy = StrategyBestQuality
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
