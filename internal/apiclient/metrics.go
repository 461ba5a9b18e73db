package apiclient

import (
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "infoadmin",
	Name:      "upstream_request_duration_seconds",
	Help:      "Duration of requests sent from the console to the REST API.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "path", "status"})

var idSegment = regexp.MustCompile(`/\d+(/|$)`)

func observe(method, path string, status int, d time.Duration) {
	// 去掉路径中的 ID，避免标签基数过大
	label := idSegment.ReplaceAllString(path, "/:id$1")
	upstreamDuration.WithLabelValues(method, label, strconv.Itoa(status)).Observe(d.Seconds())
}
