package router

import (
	"encoding/json"
	"time"

	"github.com/rickgao/streamcommerce-dash/internal/model"
)

// Message types carried in the "type" discriminator.
const (
	TypeInitialData        = "initial_data"
	TypeNewEvent           = "new_event"
	TypeStatsUpdate        = "stats_update"
	TypeFunnelUpdate       = "funnel_update"
	TypeSegmentationUpdate = "segmentation_update"
)

// Handler receives decoded push messages. Methods are called from the
// router goroutine in arrival order.
type Handler interface {
	OnInitialData(msg InitialData)
	OnNewEvent(msg NewEvent)
	OnStatsUpdate(msg StatsUpdate)
	OnFunnelUpdate(msg FunnelUpdate)
	OnSegmentationUpdate(msg SegmentationUpdate)
}

// Meta is attached to every decoded message.
type Meta struct {
	Session    int       // Connection session the message arrived on
	ReceivedAt time.Time // Local receive time
}

// InitialData is the full snapshot sent when the channel opens.
// Funnel and Segmentation are nil when the server omitted them.
type InitialData struct {
	Meta
	Stats        model.StatsSnapshot
	Events       []model.Event
	Funnel       *model.FunnelSnapshot
	Segmentation model.SegmentationSnapshot
}

// NewEvent carries one freshly tracked event.
type NewEvent struct {
	Meta
	Event model.Event
}

// StatsUpdate carries replacement counters.
type StatsUpdate struct {
	Meta
	Stats model.StatsSnapshot
}

// FunnelUpdate carries a replacement funnel.
type FunnelUpdate struct {
	Meta
	Funnel model.FunnelSnapshot
}

// SegmentationUpdate carries replacement segments.
type SegmentationUpdate struct {
	Meta
	Segmentation model.SegmentationSnapshot
}

// HandlerFuncs adapts plain functions to Handler. Nil fields ignore
// their message kind.
type HandlerFuncs struct {
	InitialData        func(InitialData)
	NewEvent           func(NewEvent)
	StatsUpdate        func(StatsUpdate)
	FunnelUpdate       func(FunnelUpdate)
	SegmentationUpdate func(SegmentationUpdate)
}

func (h HandlerFuncs) OnInitialData(msg InitialData) {
	if h.InitialData != nil {
		h.InitialData(msg)
	}
}

func (h HandlerFuncs) OnNewEvent(msg NewEvent) {
	if h.NewEvent != nil {
		h.NewEvent(msg)
	}
}

func (h HandlerFuncs) OnStatsUpdate(msg StatsUpdate) {
	if h.StatsUpdate != nil {
		h.StatsUpdate(msg)
	}
}

func (h HandlerFuncs) OnFunnelUpdate(msg FunnelUpdate) {
	if h.FunnelUpdate != nil {
		h.FunnelUpdate(msg)
	}
}

func (h HandlerFuncs) OnSegmentationUpdate(msg SegmentationUpdate) {
	if h.SegmentationUpdate != nil {
		h.SegmentationUpdate(msg)
	}
}

// Wire types for JSON parsing

// messageEnvelope is used for fast type extraction.
type messageEnvelope struct {
	Type string `json:"type"`
}

// initialDataWire is the wire format for initial_data; the payload is at
// the top level rather than under "data".
type initialDataWire struct {
	Stats        *model.StatsSnapshot       `json:"stats"`
	Events       []model.Event              `json:"events"`
	Funnel       *model.FunnelSnapshot      `json:"funnel"`
	Segmentation model.SegmentationSnapshot `json:"segmentation"`
}

// deltaWire is the wire format for every other message kind.
type deltaWire struct {
	Data json.RawMessage `json:"data"`
}
