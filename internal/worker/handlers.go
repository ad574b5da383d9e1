package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshu-sajeev/delayedjobs/internal/config"
)

// Handlers are the stand-in collaborators for the built-in queue types. They
// validate the payload ref and simulate the work.
type Handlers struct {
	logger *slog.Logger
	delay  time.Duration
}

func NewHandlers(logger *slog.Logger, delay time.Duration) *Handlers {
	return &Handlers{logger: logger, delay: delay}
}

// RegisterDefaults binds every built-in queue type on r.
func (h *Handlers) RegisterDefaults(r *Registry) error {
	defaults := map[string]HandlerFunc{
		config.QueueRenderCalendar: h.RenderCalendar,
		config.QueueOrderEmail:     h.SendOrderEmail,
		config.QueueSalesAggregate: h.AggregateSales,
	}
	for queueType, fn := range defaults {
		if err := r.Register(queueType, fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) simulate(ctx context.Context) error {
	select {
	case <-time.After(h.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RenderCalendar simulates producing the print PDF for a calendar. The ref
// is the calendar ID.
func (h *Handlers) RenderCalendar(ctx context.Context, payloadRef string) (bool, error) {
	calendarID := strings.TrimSpace(payloadRef)
	if calendarID == "" {
		return false, fmt.Errorf("render calendar: empty calendar id")
	}

	if err := h.simulate(ctx); err != nil {
		return false, fmt.Errorf("render calendar %s: %w", calendarID, err)
	}

	h.logger.Info("rendered calendar pdf",
		slog.String("calendar_id", calendarID),
		slog.String("object_key", fmt.Sprintf("calendars/%s.pdf", calendarID)),
	)
	return true, nil
}

// SendOrderEmail simulates the order confirmation mail. The ref is the order ID.
func (h *Handlers) SendOrderEmail(ctx context.Context, payloadRef string) (bool, error) {
	orderID := strings.TrimSpace(payloadRef)
	if orderID == "" {
		// nothing to look up, retrying will not help but the attempt still counts
		return false, nil
	}

	if err := h.simulate(ctx); err != nil {
		return false, fmt.Errorf("send order email %s: %w", orderID, err)
	}

	h.logger.Info("sent order confirmation",
		slog.String("order_id", orderID),
		slog.String("message_id", fmt.Sprintf("msg_%s_%d", orderID, time.Now().Unix())),
	)
	return true, nil
}

// AggregateSales simulates rolling up sales for the hour starting at the
// RFC3339 window in the ref. Re-running a window overwrites the same rollup.
func (h *Handlers) AggregateSales(ctx context.Context, payloadRef string) (bool, error) {
	window, err := time.Parse(time.RFC3339, payloadRef)
	if err != nil {
		return false, fmt.Errorf("aggregate sales: invalid window %q: %w", payloadRef, err)
	}

	if err := h.simulate(ctx); err != nil {
		return false, fmt.Errorf("aggregate sales %s: %w", payloadRef, err)
	}

	h.logger.Info("aggregated sales",
		slog.Time("window_start", window),
		slog.Time("window_end", window.Add(time.Hour)),
	)
	return true, nil
}
