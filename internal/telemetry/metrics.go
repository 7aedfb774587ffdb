package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "curation"
	sessionSubsystem = "session"
)

// Metrics tracks the actions of a curation session
type Metrics struct {
	ActionsTotal  *prometheus.CounterVec
	HistoryTotal  *prometheus.CounterVec
	Clusters      prometheus.Gauge
	UndoDepth     prometheus.Gauge
	RedoDepth     prometheus.Gauge
	WizardSelects prometheus.Counter
}

// New registers the session metrics on reg. A nil reg creates a private registry so
// several sessions can coexist in one process. Sessions sharing reg share the
// collectors already registered on it.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	var (
		m   Metrics
		err error
	)
	if m.ActionsTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: sessionSubsystem,
		Name:      "actions_total",
		Help:      "Total number of recorded actions by description",
	}, []string{"description"})); err != nil {
		return nil, err
	}
	if m.HistoryTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: sessionSubsystem,
		Name:      "history_total",
		Help:      "Total number of undo and redo steps",
	}, []string{"direction"})); err != nil {
		return nil, err
	}
	if m.Clusters, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: sessionSubsystem,
		Name:      "clusters",
		Help:      "Number of non-empty clusters",
	})); err != nil {
		return nil, err
	}
	if m.UndoDepth, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: sessionSubsystem,
		Name:      "undo_depth",
		Help:      "Number of actions that can be undone",
	})); err != nil {
		return nil, err
	}
	if m.RedoDepth, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: sessionSubsystem,
		Name:      "redo_depth",
		Help:      "Number of actions that can be redone",
	})); err != nil {
		return nil, err
	}
	if m.WizardSelects, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "wizard",
		Name:      "selects_total",
		Help:      "Total number of select events",
	})); err != nil {
		return nil, err
	}
	return &m, nil
}

// register adds c to reg, returning the collector already registered under the same
// descriptor if there is one
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// RecordAction counts a new action
func (m *Metrics) RecordAction(description string) {
	m.ActionsTotal.WithLabelValues(description).Inc()
}

// RecordHistory counts an undo or redo step
func (m *Metrics) RecordHistory(direction string) {
	m.HistoryTotal.WithLabelValues(direction).Inc()
}

// SetState updates the gauges after any change
func (m *Metrics) SetState(clusters, undoDepth, redoDepth int) {
	m.Clusters.Set(float64(clusters))
	m.UndoDepth.Set(float64(undoDepth))
	m.RedoDepth.Set(float64(redoDepth))
}

// Snapshot gathers g and returns the total of every counter and gauge family,
// formatted as "name=value" pairs sorted by name
func Snapshot(g prometheus.Gatherer) (string, error) {
	families, err := g.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather metrics: %w", err)
	}
	pairs := make([]string, 0, len(families))
	for _, mf := range families {
		var total float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			}
		}
		pairs = append(pairs, fmt.Sprintf("%s=%g", mf.GetName(), total))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, " "), nil
}
