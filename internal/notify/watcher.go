package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// Watcher subscribes to the lifecycle event channel and forwards each event
// to the Notifier as a human-readable message.
type Watcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewWatcher creates a Watcher reading from bus and delivering through n.
func NewWatcher(bus domain.SignalBus, n *Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		bus:      bus,
		notifier: n,
		logger:   logger.With(slog.String("component", "notify_watcher")),
	}
}

// Run consumes events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ch, err := w.bus.Subscribe(ctx, domain.EventChannel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", domain.EventChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			w.deliver(ctx, payload)
		}
	}
}

func (w *Watcher) deliver(ctx context.Context, payload []byte) {
	var ev domain.BetEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		w.logger.WarnContext(ctx, "malformed event payload",
			slog.String("error", err.Error()),
		)
		return
	}

	title, message := format(ev)
	if err := w.notifier.Notify(ctx, ev.Event, title, message); err != nil {
		w.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("event", ev.Event),
			slog.String("error", err.Error()),
		)
	}
}

func format(ev domain.BetEvent) (title, message string) {
	switch ev.Event {
	case domain.EventBetCreated:
		title = fmt.Sprintf("Bet #%d created", ev.BetID)
		message = fmt.Sprintf("%s staked %s on %s (market %s, entry price %s)",
			ev.Initiator, ev.InitiatorAmount, ev.InitiatorSide, ev.Market, ev.InitialPrice)
	case domain.EventBetSettled:
		title = fmt.Sprintf("Bet #%d settled", ev.BetID)
		message = fmt.Sprintf("%s matched with %s; minted %s per side, fee %s",
			ev.Acceptor, ev.AcceptorAmount, ev.MintedPerSide, ev.FeeAmount)
	case domain.EventBetCanceled:
		title = fmt.Sprintf("Bet #%d canceled", ev.BetID)
		message = fmt.Sprintf("refunded %s to %s", ev.RefundAmount, ev.Initiator)
	case domain.EventParamsChanged:
		title = "Engine parameters changed"
		message = fmt.Sprintf("market %s", ev.Market)
	default:
		title = fmt.Sprintf("Event %s (bet #%d)", ev.Event, ev.BetID)
		message = fmt.Sprintf("market %s", ev.Market)
	}
	return title, message
}
