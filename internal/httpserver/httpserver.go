package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeByKalvin/Logex/internal/config"
	"github.com/CodeByKalvin/Logex/internal/history"
	"github.com/CodeByKalvin/Logex/internal/metrics"
	"github.com/CodeByKalvin/Logex/internal/monitor"
	"github.com/CodeByKalvin/Logex/internal/obs"
	"github.com/CodeByKalvin/Logex/internal/pattern"
)

// New builds the read-only status API. History and metrics routes are
// registered only when their backends are configured.
func New(cfg config.Config, loop *monitor.Loop, mgr *config.Manager, stats *obs.Stats, hist *history.Store, recorder *metrics.RedisRecorder) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := router.Group("/api")
	{
		api.GET("/status", statusHandler(loop, mgr, hist))
		api.GET("/targets", targetsHandler(loop))
		api.GET("/stats", statsHandler(stats))
		if hist != nil {
			api.GET("/alerts/recent", recentAlertsHandler(hist))
		}
		if recorder != nil {
			api.GET("/metrics/today", metricsTodayHandler(recorder))
		}
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func statusHandler(loop *monitor.Loop, mgr *config.Manager, hist *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := mgr.Current()
		out := gin.H{
			"state":            loop.State().String(),
			"config_loaded_at": snap.LoadedAt,
			"log_files":        len(snap.LogFiles),
			"patterns":         len(snap.Patterns),
		}
		if hist != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if n, err := hist.PendingDeliveries(ctx); err == nil {
				out["pending_deliveries"] = n
			}
		}
		respondOK(c, out)
	}
}

func targetsHandler(loop *monitor.Loop) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondOK(c, loop.Targets())
	}
}

func statsHandler(stats *obs.Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondOK(c, stats.Snapshot())
	}
}

func recentAlertsHandler(hist *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		alerts, err := hist.RecentAlerts(ctx, limit)
		if err != nil {
			respondErr(c, http.StatusInternalServerError, "query alert history failed")
			return
		}
		respondOK(c, alerts)
	}
}

func metricsTodayHandler(recorder *metrics.RedisRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sum, ok, err := recorder.Today(ctx, time.Now(),
			[]string{string(pattern.SeverityHigh), string(pattern.SeverityMedium), string(pattern.SeverityLow)},
			config.AlertMethods)
		if err != nil {
			respondErr(c, http.StatusInternalServerError, "metrics unavailable")
			return
		}
		if !ok {
			respondErr(c, http.StatusNotFound, "metrics not configured")
			return
		}
		respondOK(c, sum)
	}
}
