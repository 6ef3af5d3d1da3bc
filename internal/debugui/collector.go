// Package debugui keeps auction diagnostics for the debug endpoints.
package debugui

import (
	"fmt"
	"sync"

	"github.com/echoface/pbevents/internal/events"
	"github.com/echoface/pbevents/internal/events/prebid"
	"github.com/echoface/pbevents/pkg/jsonx"
	"github.com/echoface/pbevents/pkg/logger"
)

// Auction is the debug record of one auction.
type Auction struct {
	AuctionID string         `json:"auctionId"`
	End       map[string]any `json:"end"`
}

// Snapshot is the data exposed to the debug UI.
type Snapshot struct {
	Auctions     []Auction `json:"auction_data"`
	AuctionDebug []any     `json:"auction_debug"`
}

// Collector records auctionEnd and auctionDebug emissions. Auctions are kept
// in the order they first ended.
type Collector struct {
	bus *events.Bus
	log logger.Logger

	onEnd   *events.Handler
	onDebug *events.Handler

	mu       sync.RWMutex
	order    []string
	auctions map[string]map[string]any
	debug    []any
}

// NewCollector subscribes a collector to bus.
func NewCollector(bus *events.Bus, log logger.Logger) (*Collector, error) {
	c := &Collector{
		bus:      bus,
		log:      log,
		auctions: make(map[string]map[string]any),
	}
	c.onEnd = events.Named("debugui.auctionEnd", c.auctionEnd)
	c.onDebug = events.Named("debugui.auctionDebug", c.auctionDebug)

	if err := bus.On(prebid.AuctionEnd, c.onEnd, ""); err != nil {
		return nil, err
	}
	if err := bus.On(prebid.AuctionDebug, c.onDebug, ""); err != nil {
		bus.Off(prebid.AuctionEnd, c.onEnd, "")
		return nil, err
	}
	return c, nil
}

// Close unsubscribes the collector.
func (c *Collector) Close() {
	c.bus.Off(prebid.AuctionEnd, c.onEnd, "")
	c.bus.Off(prebid.AuctionDebug, c.onDebug, "")
}

func (c *Collector) auctionEnd(args ...any) error {
	if len(args) == 0 {
		return fmt.Errorf("auctionEnd without payload")
	}
	data, err := toRecord(args[0])
	if err != nil {
		return err
	}
	auctionID, _ := data["auctionId"].(string)
	if auctionID == "" {
		return fmt.Errorf("auctionEnd payload has no auctionId")
	}
	// timestamp on auctionEnd is the auction start
	if ts, ok := data["timestamp"]; ok {
		data["auctionStart"] = ts
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.auctions[auctionID]; !seen {
		c.order = append(c.order, auctionID)
	}
	c.auctions[auctionID] = data
	c.log.Debug("auction end recorded", "auctionId", auctionID)
	return nil
}

func (c *Collector) auctionDebug(args ...any) error {
	if len(args) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = append(c.debug, args[0])
	return nil
}

// Snapshot copies the collected data.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Auctions:     make([]Auction, 0, len(c.order)),
		AuctionDebug: append([]any{}, c.debug...),
	}
	for _, id := range c.order {
		end := make(map[string]any, len(c.auctions[id]))
		for k, v := range c.auctions[id] {
			end[k] = v
		}
		snap.Auctions = append(snap.Auctions, Auction{AuctionID: id, End: end})
	}
	return snap
}

// toRecord turns a typed or decoded payload into a fresh map so the emitter's
// value is never modified.
func toRecord(payload any) (map[string]any, error) {
	if m, ok := payload.(map[string]any); ok {
		out := make(map[string]any, len(m)+1)
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}
	data, err := jsonx.JSONE(payload)
	if err != nil {
		return nil, fmt.Errorf("encode auctionEnd payload: %w", err)
	}
	out := make(map[string]any)
	if err := jsonx.Decode(data, &out); err != nil {
		return nil, fmt.Errorf("decode auctionEnd payload: %w", err)
	}
	return out, nil
}
