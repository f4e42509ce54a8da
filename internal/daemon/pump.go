package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/guepardlover77/sms-app/internal/bus"
	"github.com/guepardlover77/sms-app/internal/transport"
)

// pump forwards the transport's inbound stream onto the bus. Ingestion
// subscribes there instead of reading the transport directly, so any
// component can observe raw inbound traffic.
type pump struct {
	receiver transport.Receiver
	bus      *bus.Bus
	logger   *zap.Logger
	cancel   context.CancelFunc
}

func newPump(r transport.Receiver, b *bus.Bus, logger *zap.Logger) *pump {
	return &pump{receiver: r, bus: b, logger: logger}
}

func (p *pump) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		inbound := p.receiver.Inbound()
		for {
			select {
			case msg, ok := <-inbound:
				if !ok {
					return
				}
				p.logger.Debug("inbound message", zap.String("address", msg.Address))
				p.bus.Publish(bus.Event{
					Kind:      bus.KindInbound,
					Timestamp: time.Now(),
					Payload:   &msg,
				})
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *pump) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}
