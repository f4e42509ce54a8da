package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Loopback is a development transport. It acks every part as sent after a
// configurable latency, follows up with a delivered report, and can echo
// the message back as an inbound reply so the full receive path can be
// exercised without a modem.
type Loopback struct {
	latency time.Duration
	echo    bool
	logger  *zap.Logger

	reports chan DeliveryReport
	inbound chan Inbound

	mu     sync.Mutex
	closed bool
}

// NewLoopback creates a loopback transport.
func NewLoopback(latency time.Duration, echo bool, logger *zap.Logger) *Loopback {
	return &Loopback{
		latency: latency,
		echo:    echo,
		logger:  logger,
		reports: make(chan DeliveryReport, 64),
		inbound: make(chan Inbound, 64),
	}
}

// Send acks the part after the configured latency and schedules a
// delivery report. The final part of an echoing send also queues an
// inbound reply.
func (l *Loopback) Send(ctx context.Context, p Part) (Ack, error) {
	select {
	case <-time.After(l.latency):
	case <-ctx.Done():
		return AckFailed, fmt.Errorf("loopback send: %w", ctx.Err())
	}

	go l.report(p)
	l.logger.Debug("loopback part sent",
		zap.String("token", p.Token),
		zap.Int("index", p.Index),
		zap.Int("total", p.Total))
	return AckSent, nil
}

func (l *Loopback) report(p Part) {
	time.Sleep(l.latency)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	select {
	case l.reports <- DeliveryReport{Token: p.Token, Index: p.Index, Delivered: true}:
	default:
	}

	if l.echo && p.Index == p.Total-1 {
		select {
		case l.inbound <- Inbound{
			Address:   p.Address,
			Body:      "echo: " + p.Body,
			Timestamp: time.Now().UnixMilli(),
		}:
		default:
		}
	}
}

// DeliveryReports returns the delivery-report stream.
func (l *Loopback) DeliveryReports() <-chan DeliveryReport {
	return l.reports
}

// Inbound returns the echoed inbound stream.
func (l *Loopback) Inbound() <-chan Inbound {
	return l.inbound
}

// Close stops the loopback's streams. Pending reports are dropped.
func (l *Loopback) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.reports)
	close(l.inbound)
}
