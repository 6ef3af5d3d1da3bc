// Package prebid holds the header-bidding event names and the payload shapes
// consumed inside this service.
package prebid

import "github.com/echoface/pbevents/internal/events"

const (
	AuctionInit       = "auctionInit"
	AuctionEnd        = "auctionEnd"
	BidAdjustment     = "bidAdjustment"
	BidTimeout        = "bidTimeout"
	BidRequested      = "bidRequested"
	BidResponse       = "bidResponse"
	NoBid             = "noBid"
	BidWon            = "bidWon"
	BidderDone        = "bidderDone"
	BidderError       = "bidderError"
	SetTargeting      = "setTargeting"
	BeforeRequestBids = "beforeRequestBids"
	BeforeBidderHTTP  = "beforeBidderHttp"
	RequestBids       = "requestBids"
	AddAdUnits        = "addAdUnits"
	AdRenderFailed    = "adRenderFailed"
	AdRenderSucceeded = "adRenderSucceeded"
	TCF2Enforcement   = "tcf2Enforcement"
	AuctionDebug      = "auctionDebug"
	BidViewable       = "bidViewable"
	StaleRender       = "staleRender"
	BillableEvent     = "billableEvent"
)

// Events lists every recognized event name.
var Events = []string{
	AuctionInit, AuctionEnd, BidAdjustment, BidTimeout, BidRequested, BidResponse,
	NoBid, BidWon, BidderDone, BidderError, SetTargeting, BeforeRequestBids,
	BeforeBidderHTTP, RequestBids, AddAdUnits, AdRenderFailed, AdRenderSucceeded,
	TCF2Enforcement, AuctionDebug, BidViewable, StaleRender, BillableEvent,
}

// IDPaths is the default id path per event.
var IDPaths = map[string]string{
	BidWon: "adUnitCode",
}

// AuctionInitData is the auctionInit payload.
type AuctionInitData struct {
	AuctionID string `json:"auctionId"`
	Timestamp int64  `json:"timestamp"`
	Timeout   int64  `json:"timeout"`
}

// AuctionEndData is the auctionEnd payload. Timestamp is the auction start.
type AuctionEndData struct {
	AuctionID     string         `json:"auctionId"`
	Timestamp     int64          `json:"timestamp"`
	AuctionEnd    int64          `json:"auctionEnd"`
	AuctionStatus string         `json:"auctionStatus"`
	AdUnitCodes   []string       `json:"adUnitCodes,omitempty"`
	BidsReceived  []Bid          `json:"bidsReceived,omitempty"`
	NoBids        []Bid          `json:"noBids,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// AuctionDebugData is the auctionDebug payload.
type AuctionDebugData struct {
	Type      string `json:"type"`
	Arguments []any  `json:"arguments,omitempty"`
}

// Bid is the bid record carried by bidResponse, bidWon and friends.
type Bid struct {
	AdUnitCode string  `json:"adUnitCode"`
	AuctionID  string  `json:"auctionId"`
	Bidder     string  `json:"bidder"`
	RequestID  string  `json:"requestId"`
	CPM        float64 `json:"cpm"`
	Currency   string  `json:"currency,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
}

// DefaultCatalog returns the full event set. Typed payloads are matched first,
// then decoded JSON via the id path.
func DefaultCatalog() *events.Catalog {
	return Catalog(Events, IDPaths)
}

// Catalog builds a catalog from names and id paths. Events with a known typed
// payload get a typed accessor in front of the path lookup.
func Catalog(names []string, idPaths map[string]string) *events.Catalog {
	c := events.NewCatalog(names...)
	for name, path := range idPaths {
		if typed := typedAccessor(name, path); typed != nil {
			c.WithPath(name, path, typed)
			continue
		}
		c.WithPath(name, path)
	}
	return c
}

func typedAccessor(name, path string) events.IDFunc {
	switch {
	case path == "adUnitCode" && isBidEvent(name):
		return events.TypedID(func(b Bid) string { return b.AdUnitCode })
	case path == "auctionId" && isBidEvent(name):
		return events.TypedID(func(b Bid) string { return b.AuctionID })
	case path == "auctionId" && name == AuctionEnd:
		return events.TypedID(func(a AuctionEndData) string { return a.AuctionID })
	case path == "auctionId" && name == AuctionInit:
		return events.TypedID(func(a AuctionInitData) string { return a.AuctionID })
	default:
		return nil
	}
}

func isBidEvent(name string) bool {
	switch name {
	case BidWon, BidResponse, BidAdjustment, BidViewable, AdRenderSucceeded, BillableEvent:
		return true
	}
	return false
}
