package observability

import (
	"log/slog"
	"math/big"

	"capmarket/core/events"
	"capmarket/core/types"
)

// EventObserver adapts the ledger's in-process event stream into structured
// logs and metrics. It satisfies events.Emitter so the daemon can hand it to
// the engine directly.
type EventObserver struct {
	logger *slog.Logger
}

func NewEventObserver(logger *slog.Logger) *EventObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventObserver{logger: logger}
}

func (o *EventObserver) Emit(evt events.Event) {
	if o == nil || evt == nil {
		return
	}
	if loan, ok := evt.(events.MarketFlashLoan); ok && loan.Fee != nil {
		fee, _ := new(big.Float).SetInt(loan.Fee).Float64()
		Market().AddFlashFee(fee)
	}
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		o.logger.Info(evt.EventType())
		return
	}
	rec := payload.Event()
	attrs := make([]any, 0, len(rec.Attributes)*2)
	for key, value := range rec.Attributes {
		attrs = append(attrs, key, value)
	}
	o.logger.Info(rec.Type, attrs...)
}
