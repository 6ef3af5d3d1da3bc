package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/echoface/pbevents/internal/config"
	"github.com/echoface/pbevents/internal/debugui"
	"github.com/echoface/pbevents/internal/events"
	"github.com/echoface/pbevents/internal/metrics"
	"github.com/echoface/pbevents/pkg/jsonx"
	"github.com/echoface/pbevents/pkg/logger"
)

// AppContext owns everything the service builds at startup: the event bus,
// its consumers and the HTTP surface.
type AppContext struct {
	Config *config.ServerConfig

	HTTPServer *http.Server
	Router     *gin.Engine

	MetricsRegistry *prometheus.Registry
	BusMetrics      *metrics.BusMetrics

	Bus       *events.Bus
	Collector *debugui.Collector // nil unless debug is enabled

	Logger logger.Logger

	streams *streamHub

	mu        sync.RWMutex
	isHealthy bool
	startTime time.Time
}

// NewAppContext wires the bus, metrics, debug collector and routes.
func NewAppContext(cfg *config.ServerConfig, log logger.Logger) (*AppContext, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if log == nil {
		log = logger.Default
	}
	dump := jsonx.LzJSON(cfg)
	if !cfg.IsProduction() {
		dump = jsonx.LzPretty(cfg)
	}
	log.Debug("use config", "config", dump)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	prom := cfg.Monitoring.Prometheus
	busMetrics := metrics.NewBusMetrics(registry, prom.Namespace, prom.Subsystem)
	bus := events.NewBus(cfg.Catalog(), events.WithLogger(log), events.WithObserver(busMetrics))

	appCtx := &AppContext{
		Config:          cfg,
		MetricsRegistry: registry,
		BusMetrics:      busMetrics,
		Bus:             bus,
		Logger:          log,
		isHealthy:       true,
		startTime:       time.Now(),
	}
	appCtx.streams = newStreamHub(bus, log)

	if cfg.Debug {
		collector, err := debugui.NewCollector(bus, log)
		if err != nil {
			return nil, err
		}
		appCtx.Collector = collector
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if prom.Enabled {
		router.Use(metrics.NewHTTPMetrics(registry, prom.Namespace).Middleware())
		endpoint := prom.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		router.GET(endpoint, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	appCtx.Router = router
	registerRoutes(appCtx)

	appCtx.HTTPServer = &http.Server{
		Addr:         cfg.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return appCtx, nil
}

// SetHealthStatus sets the overall health status of the application
func (ac *AppContext) SetHealthStatus(healthy bool) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.isHealthy = healthy
}

// IsApplicationHealthy returns the overall health status
func (ac *AppContext) IsApplicationHealthy() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.isHealthy
}

// Shutdown marks the service unhealthy, detaches bus consumers and drains
// the HTTP server.
func (ac *AppContext) Shutdown(ctx context.Context) error {
	ac.Logger.Info("Initiating graceful shutdown...")
	ac.SetHealthStatus(false)

	ac.streams.closeAll()
	if ac.Collector != nil {
		ac.Collector.Close()
	}

	err := ac.HTTPServer.Shutdown(ctx)
	ac.Logger.Info("Graceful shutdown completed", "error", err)
	return err
}
