package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/streamcommerce-dash/internal/connection"
	"github.com/rickgao/streamcommerce-dash/internal/model"
)

var (
	errMissingPayload = errors.New("missing payload")
	errUnknownType    = errors.New("unknown message type")
)

// Router parses raw push messages and dispatches them by type.
type Router interface {
	// Start begins routing messages from the input channel to the handler.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	MessagesRouted   int64
	ParseErrors      int64
	UnknownMessages  int64
	ByType           map[string]int64
}

// router is the internal implementation.
type router struct {
	logger  *slog.Logger
	handler Handler

	// Input from Connection Manager
	input <-chan connection.RawMessage

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.RWMutex
	received        int64
	routed          int64
	parseErrors     int64
	unknownMessages int64
	byType          map[string]int64
}

// NewRouter creates a new Message Router.
func NewRouter(input <-chan connection.RawMessage, handler Handler, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		logger:  logger,
		handler: handler,
		input:   input,
		byType:  make(map[string]int64),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started")
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
		return ctx.Err()
	}

	return nil
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byType := make(map[string]int64, len(r.byType))
	for k, v := range r.byType {
		byType[k] = v
	}

	return RouterStats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		UnknownMessages:  r.unknownMessages,
		ByType:           byType,
	}
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route parses and dispatches a single message. Malformed and unknown
// messages are dropped without side effects.
func (r *router) route(raw connection.RawMessage) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	msgType, err := Dispatch(raw, r.handler)
	switch {
	case errors.Is(err, errUnknownType):
		r.logger.Debug("skipping message type", "type", msgType)
		r.mu.Lock()
		r.unknownMessages++
		r.mu.Unlock()
		return

	case err != nil:
		r.logger.Debug("dropping malformed message", "type", msgType, "error", err)
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.routed++
	r.byType[msgType]++
	r.mu.Unlock()
}

// Dispatch decodes one raw message and calls the matching handler method.
// It returns the message type it found, and an error when the message is
// malformed or its type is not one of the known kinds; in both cases
// the handler is not called.
func Dispatch(raw connection.RawMessage, h Handler) (string, error) {
	var envelope messageEnvelope
	if err := json.Unmarshal(raw.Data, &envelope); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}

	meta := Meta{Session: raw.Session, ReceivedAt: raw.ReceivedAt}

	switch envelope.Type {
	case TypeInitialData:
		msg, err := parseInitialData(raw.Data)
		if err != nil {
			return envelope.Type, err
		}
		msg.Meta = meta
		h.OnInitialData(msg)

	case TypeNewEvent:
		var ev model.Event
		if err := decodeDelta(raw.Data, &ev); err != nil {
			return envelope.Type, err
		}
		h.OnNewEvent(NewEvent{Meta: meta, Event: ev})

	case TypeStatsUpdate:
		var stats model.StatsSnapshot
		if err := decodeDelta(raw.Data, &stats); err != nil {
			return envelope.Type, err
		}
		h.OnStatsUpdate(StatsUpdate{Meta: meta, Stats: stats})

	case TypeFunnelUpdate:
		var funnel model.FunnelSnapshot
		if err := decodeDelta(raw.Data, &funnel); err != nil {
			return envelope.Type, err
		}
		h.OnFunnelUpdate(FunnelUpdate{Meta: meta, Funnel: funnel})

	case TypeSegmentationUpdate:
		var seg model.SegmentationSnapshot
		if err := decodeDelta(raw.Data, &seg); err != nil {
			return envelope.Type, err
		}
		h.OnSegmentationUpdate(SegmentationUpdate{Meta: meta, Segmentation: seg})

	default:
		return envelope.Type, errUnknownType
	}

	return envelope.Type, nil
}

// parseInitialData parses an initial_data message.
func parseInitialData(data []byte) (InitialData, error) {
	var wire initialDataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return InitialData{}, fmt.Errorf("decode initial_data: %w", err)
	}
	if wire.Stats == nil {
		return InitialData{}, fmt.Errorf("initial_data stats: %w", errMissingPayload)
	}

	return InitialData{
		Stats:        *wire.Stats,
		Events:       wire.Events,
		Funnel:       wire.Funnel,
		Segmentation: wire.Segmentation,
	}, nil
}

// decodeDelta decodes the "data" member of a delta message into v.
func decodeDelta(data []byte, v any) error {
	var wire deltaWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if len(wire.Data) == 0 || string(wire.Data) == "null" {
		return errMissingPayload
	}
	if err := json.Unmarshal(wire.Data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
