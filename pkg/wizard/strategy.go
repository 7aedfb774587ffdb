package wizard

import (
	"slices"
	"sort"
	"strings"

	"github.com/FrenchMajesty/cluster-curation/pkg/types"
)

// ClusterIDsFunc returns the live cluster ids. It is called on every query.
type ClusterIDsFunc func() []types.ClusterID

// StatusFunc returns the curation status of a cluster
type StatusFunc func(cluster types.ClusterID) types.Status

// QualityFunc returns the quality score of a cluster; higher is better
type QualityFunc func(cluster types.ClusterID) float64

// SimilarityFunc returns the similarity between two clusters; it need not be symmetric
type SimilarityFunc func(a, b types.ClusterID) float64

// StrategyFunc proposes the selection that follows the current one
type StrategyFunc func(selection, clusterIDs []types.ClusterID, quality QualityFunc, status StatusFunc, similarity SimilarityFunc) []types.ClusterID

// GroupStatus maps a raw group label to a status: "mua" and "noise" are ignored,
// "good" is good, anything else (including an empty label) is none.
func GroupStatus(label string) types.Status {
	switch strings.ToLower(label) {
	case "mua", "noise":
		return types.StatusIgnored
	case "good":
		return types.StatusGood
	}
	return types.StatusNone
}

type scored struct {
	cluster types.ClusterID
	value   float64
}

// argsort returns the clusters by decreasing value, ties keeping input order
func argsort(s []scored) []types.ClusterID {
	sort.SliceStable(s, func(i, j int) bool { return s[i].value > s[j].value })
	out := make([]types.ClusterID, len(s))
	for i, c := range s {
		out[i] = c.cluster
	}
	return out
}

func nextInList(list []types.ClusterID, item types.ClusterID) types.ClusterID {
	i := slices.Index(list, item)
	if i < 0 || i == len(list)-1 {
		return item
	}
	return list[i+1]
}

// sortByStatus orders clusters none < good < ignored, keeping the order within a status.
// It panics without a status function.
func sortByStatus(clusters []types.ClusterID, status StatusFunc, removeIgnored bool) []types.ClusterID {
	if status == nil {
		panic("wizard: a status function is required to sort clusters by status")
	}
	out := make([]types.ClusterID, 0, len(clusters))
	for _, c := range clusters {
		if removeIgnored && status(c) == types.StatusIgnored {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return status(out[i]) < status(out[j]) })
	return out
}

func bestClusters(clusters []types.ClusterID, quality QualityFunc) []types.ClusterID {
	s := make([]scored, len(clusters))
	for i, c := range clusters {
		s[i] = scored{cluster: c, value: quality(c)}
	}
	return argsort(s)
}

// mostSimilarClusters returns the clusters whose similarity to cluster is at most
// lessThan, most similar first, without ignored clusters
func mostSimilarClusters(cluster types.ClusterID, clusterIDs []types.ClusterID, similarity SimilarityFunc, status StatusFunc, lessThan float64) []types.ClusterID {
	if !slices.Contains(clusterIDs, cluster) {
		return nil
	}
	var s []scored
	for _, other := range clusterIDs {
		if other == cluster {
			continue
		}
		if v := similarity(cluster, other); v <= lessThan {
			s = append(s, scored{cluster: other, value: v})
		}
	}
	return sortByStatus(argsort(s), status, true)
}

// BestQualityStrategy moves through clusters by quality and through pairs by similarity.
//
// With one selected cluster it returns the next cluster by decreasing quality, ordered
// by status. With two selected clusters (best, match) it returns best with the next
// most similar non-ignored cluster whose similarity does not exceed the current pair's.
// Any other selection is returned unchanged.
func BestQualityStrategy(selection, clusterIDs []types.ClusterID, quality QualityFunc, status StatusFunc, similarity SimilarityFunc) []types.ClusterID {
	switch len(selection) {
	case 1:
		best := sortByStatus(bestClusters(clusterIDs, quality), status, false)
		return []types.ClusterID{nextInList(best, selection[0])}
	case 2:
		best, match := selection[0], selection[1]
		candidates := mostSimilarClusters(best, clusterIDs, similarity, status, similarity(best, match))
		candidates = slices.DeleteFunc(candidates, func(c types.ClusterID) bool {
			return c == best || c == match
		})
		if len(candidates) == 0 {
			return selection
		}
		return []types.ClusterID{best, candidates[0]}
	}
	return selection
}
