package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/internal/services"
	"github.com/huangang/taskflow/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// RegisterMetrics exposes DB pool, SSE and task gauges on reg.
func RegisterMetrics(reg prometheus.Registerer, db *gorm.DB, hub *services.EventHub) error {
	pool := func(name, help string, read func(s poolStats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			sqlDB, err := db.DB()
			if err != nil {
				return 0
			}
			st := sqlDB.Stats()
			return float64(read(poolStats{open: st.OpenConnections, inUse: st.InUse, idle: st.Idle}))
		})
	}

	collectors := []prometheus.Collector{
		pool("taskflow_db_open_connections", "Number of open DB connections", func(s poolStats) int { return s.open }),
		pool("taskflow_db_in_use_connections", "Number of in-use DB connections", func(s poolStats) int { return s.inUse }),
		pool("taskflow_db_idle_connections", "Number of idle DB connections", func(s poolStats) int { return s.idle }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "taskflow_sse_active_clients",
			Help: "Number of active SSE connections",
		}, func() float64 { return float64(hub.ClientCount()) }),
		newTaskCollector(db),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MetricsHandler serves the default Prometheus registry.
// GET /metrics
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

type poolStats struct {
	open, inUse, idle int
}

// taskCollector reports the number of tasks per status at scrape time.
type taskCollector struct {
	db   *gorm.DB
	desc *prometheus.Desc
}

func newTaskCollector(db *gorm.DB) *taskCollector {
	return &taskCollector{
		db:   db,
		desc: prometheus.NewDesc("taskflow_tasks", "Number of tasks by status", []string{"status"}, nil),
	}
}

func (tc *taskCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- tc.desc
}

func (tc *taskCollector) Collect(ch chan<- prometheus.Metric) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := tc.db.Model(&models.Task{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		logger.Warn().Err(err).Msg("task metrics query failed")
		return
	}

	counts := make(map[string]int64, len(models.TaskStatuses))
	for _, status := range models.TaskStatuses {
		counts[status] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(tc.desc, prometheus.GaugeValue, float64(n), status)
	}
}
