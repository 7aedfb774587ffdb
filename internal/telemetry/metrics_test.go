package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordAction("merge")
	m.RecordAction("merge")
	m.RecordAction("metadata_group")
	m.RecordHistory("undo")
	m.SetState(4, 2, 1)
	m.WizardSelects.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("merge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("metadata_group")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryTotal.WithLabelValues("undo")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Clusters))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UndoDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedoDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WizardSelects))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestMetrics_PrivateRegistries(t *testing.T) {
	a, err := New(nil)
	require.NoError(t, err)
	b, err := New(nil)
	require.NoError(t, err)

	a.RecordAction("merge")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ActionsTotal.WithLabelValues("merge")))
}

func TestMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	assert.Same(t, a.ActionsTotal, b.ActionsTotal)
	assert.Same(t, a.HistoryTotal, b.HistoryTotal)

	a.RecordAction("merge")
	b.RecordAction("merge")
	b.WizardSelects.Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(a.ActionsTotal.WithLabelValues("merge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.WizardSelects))
}

func TestMetrics_ConflictingRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "curation_session_clusters",
		Help: "Something else",
	}))

	_, err := New(reg)
	assert.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordAction("merge")
	m.RecordAction("metadata_group")
	m.SetState(4, 2, 0)

	snap, err := Snapshot(reg)
	require.NoError(t, err)
	assert.Equal(t, "curation_session_actions_total=2 curation_session_clusters=4 "+
		"curation_session_redo_depth=0 curation_session_undo_depth=2 curation_wizard_selects_total=0", snap)
}
