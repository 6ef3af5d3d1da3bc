package prebid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoface/pbevents/internal/events"
	"github.com/echoface/pbevents/pkg/logger"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, Events, c.Names())
	assert.Equal(t, map[string]string{BidWon: "adUnitCode"}, c.IDSources())

	id, ok := c.ID(BidWon, Bid{AdUnitCode: "div-1"})
	assert.True(t, ok)
	assert.Equal(t, "div-1", id)

	id, ok = c.ID(BidWon, &Bid{AdUnitCode: "div-2"})
	assert.True(t, ok)
	assert.Equal(t, "div-2", id)

	id, ok = c.ID(BidWon, map[string]any{"adUnitCode": "div-3"})
	assert.True(t, ok)
	assert.Equal(t, "div-3", id)

	_, ok = c.ID(AuctionEnd, AuctionEndData{AuctionID: "x"})
	assert.False(t, ok)
}

func TestCatalogWithAuctionScoping(t *testing.T) {
	c := Catalog([]string{AuctionEnd, BidResponse, "custom"}, map[string]string{
		AuctionEnd:  "auctionId",
		BidResponse: "auctionId",
		"custom":    "meta.slot",
		BidWon:      "adUnitCode",
	})

	assert.Equal(t, []string{AuctionEnd, BidResponse, "custom"}, c.Names())
	assert.False(t, c.Has(BidWon), "id paths only scope listed events")

	id, ok := c.ID(AuctionEnd, AuctionEndData{AuctionID: "auc-1"})
	assert.True(t, ok)
	assert.Equal(t, "auc-1", id)

	id, ok = c.ID(BidResponse, Bid{AuctionID: "auc-2"})
	assert.True(t, ok)
	assert.Equal(t, "auc-2", id)

	id, ok = c.ID("custom", map[string]any{"meta": map[string]any{"slot": "top"}})
	assert.True(t, ok)
	assert.Equal(t, "top", id)
}

func TestBidWonScopedByAdUnit(t *testing.T) {
	bus := events.NewBus(DefaultCatalog(), events.WithLogger(logger.NewRecorder()))

	var won []Bid
	require.NoError(t, bus.On(BidWon, events.Func(func(args ...any) error {
		won = append(won, args[0].(Bid))
		return nil
	}), "div-1"))

	bus.Emit(BidWon, Bid{AdUnitCode: "div-1", Bidder: "pubmatic", CPM: 1.2})
	bus.Emit(BidWon, Bid{AdUnitCode: "div-2", Bidder: "admatic", CPM: 0.8})

	require.Len(t, won, 1)
	assert.Equal(t, "pubmatic", won[0].Bidder)

	fired := bus.GetEvents()
	require.Len(t, fired, 2)
	assert.Equal(t, "div-2", fired[1].ID)
}
