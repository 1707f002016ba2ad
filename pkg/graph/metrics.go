package graph

import "strings"

// metricAliases maps the reels-specific metric names the API returns to
// the canonical column names used in storage.
var metricAliases = map[string]string{
	"ig_reels_video_view_total_time": "video_view_total_time",
	"ig_reels_avg_watch_time":        "avg_watch_time",
}

// NormalizeMetrics flattens an insights response into a metric map,
// renaming reels-specific metrics to their canonical names. Metrics
// with no data points are dropped.
func NormalizeMetrics(resp *InsightsResponse) map[string]int64 {
	out := make(map[string]int64, len(resp.Data))
	for _, insight := range resp.Data {
		if len(insight.Values) == 0 {
			continue
		}
		name := insight.Name
		if canonical, ok := metricAliases[name]; ok {
			name = canonical
		}
		out[name] = insight.Values[0].Value
	}
	return out
}

// InsightMetricsFor returns the metric names to request for a media
// type. Stories support no post insights here.
func InsightMetricsFor(mediaType string) []string {
	metrics := make([]string, 0, len(BaseInsightMetrics)+3)
	metrics = append(metrics, BaseInsightMetrics...)
	switch strings.ToUpper(mediaType) {
	case "VIDEO":
		metrics = append(metrics, VideoInsightMetrics...)
	case "CAROUSEL_ALBUM":
		metrics = append(metrics, CarouselInsightMetrics...)
	}
	return metrics
}
