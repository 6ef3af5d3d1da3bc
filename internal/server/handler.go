package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/echoface/pbevents/internal/events"
	"github.com/echoface/pbevents/pkg/jsonx"
)

const version = "v1.0.0"

func registerRoutes(ac *AppContext) {
	r := ac.Router
	r.GET("/", ac.handleRoot)
	r.GET("/health", ac.handleHealth)

	r.GET("/events", ac.handleEvents)
	r.GET("/events/catalog", ac.handleCatalog)
	r.GET("/events/stream", ac.handleStream)
	r.GET("/subscriptions", ac.handleSubscriptions)
	r.POST("/emit/:event", ac.handleEmit)

	r.GET("/debug/auctions", ac.handleDebugAuctions)
}

func (ac *AppContext) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pbevents server is running!",
		"version": version,
		"healthy": ac.IsApplicationHealthy(),
	})
}

func (ac *AppContext) handleHealth(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if !ac.IsApplicationHealthy() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now(),
		"uptime":    time.Since(ac.startTime).String(),
		"run_type":  ac.Config.RunType,
	})
}

// writeJSON encodes with sonic; gin's renderer would fall back to encoding/json.
func writeJSON(c *gin.Context, code int, v any) {
	data, err := jsonx.JSONE(v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(code, "application/json; charset=utf-8", data)
}

func (ac *AppContext) handleEvents(c *gin.Context) {
	fired := ac.Bus.GetEvents()
	if name := c.Query("type"); name != "" {
		filtered := fired[:0]
		for _, ev := range fired {
			if ev.EventType == name {
				filtered = append(filtered, ev)
			}
		}
		fired = filtered
	}
	writeJSON(c, http.StatusOK, gin.H{"count": len(fired), "events": fired})
}

func (ac *AppContext) handleCatalog(c *gin.Context) {
	catalog := ac.Bus.Catalog()
	writeJSON(c, http.StatusOK, gin.H{
		"events":   catalog.Names(),
		"id_paths": catalog.IDSources(),
	})
}

type queueSummary struct {
	Global int            `json:"global"`
	IDs    map[string]int `json:"ids,omitempty"`
}

func (ac *AppContext) handleSubscriptions(c *gin.Context) {
	out := make(map[string]queueSummary)
	for name, subs := range ac.Bus.Get() {
		sum := queueSummary{Global: len(subs.Global)}
		if len(subs.ByID) > 0 {
			sum.IDs = make(map[string]int, len(subs.ByID))
			for id, queue := range subs.ByID {
				sum.IDs[id] = len(queue)
			}
		}
		out[name] = sum
	}
	writeJSON(c, http.StatusOK, out)
}

type emitResult struct {
	Event    string   `json:"event"`
	Handlers int      `json:"handlers"`
	Failed   []string `json:"failed,omitempty"`
}

// handleEmit publishes the JSON body as the event payload. Unlike Bus.Emit,
// the HTTP surface only accepts catalog events so the audit log cannot be
// filled with arbitrary names from outside.
func (ac *AppContext) handleEmit(c *gin.Context) {
	name := c.Param("event")
	if !ac.Bus.Catalog().Has(name) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown event",
			"event": name,
			"valid": ac.Bus.Catalog().Names(),
		})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body", "details": err.Error()})
		return
	}

	var args []any
	if len(body) > 0 {
		var payload any
		if err := jsonx.Decode(body, &payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload", "details": err.Error()})
			return
		}
		args = append(args, payload)
	}

	outcomes := ac.Bus.Dispatch(name, args...)
	writeJSON(c, http.StatusAccepted, summarize(name, outcomes))
}

func summarize(name string, outcomes []events.Outcome) emitResult {
	res := emitResult{Event: name, Handlers: len(outcomes)}
	for _, o := range outcomes {
		if !o.OK() {
			res.Failed = append(res.Failed, o.Err.Error())
		}
	}
	return res
}

func (ac *AppContext) handleDebugAuctions(c *gin.Context) {
	if ac.Collector == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "debug collector disabled"})
		return
	}
	writeJSON(c, http.StatusOK, ac.Collector.Snapshot())
}
