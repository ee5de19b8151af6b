package service

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rankproxy",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests by path and status code.",
	}, []string{"path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rankproxy",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by path.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})
)

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" || path == "/metrics" {
			return
		}
		httpRequests.WithLabelValues(path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}
