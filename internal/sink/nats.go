// Package sink delivers finished reports to downstream systems.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gyaneshwarpardhi/flowlens/internal/report"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "flowlens.reports"

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATS publishes each report as one JSON message.
type NATS struct {
	pub     Publisher
	conn    *nats.Conn // nil when built around a custom Publisher
	subject string
}

// ConnectNATS dials url and returns a sink publishing to subject.
func ConnectNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("flowlens"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.Timeout(10*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("disconnected from NATS", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			slog.Error("NATS error", "err", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", url, err)
	}
	s := NewNATS(nc, subject)
	s.conn = nc
	return s, nil
}

// NewNATS wraps an existing publisher.
func NewNATS(pub Publisher, subject string) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{pub: pub, subject: subject}
}

// Subject returns the subject reports are published on.
func (s *NATS) Subject() string { return s.subject }

// Publish sends rep and waits until the server has acknowledged the flush.
func (s *NATS) Publish(ctx context.Context, rep *report.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	msg := nats.NewMsg(s.subject)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("Flowlens-Sessions", strconv.Itoa(rep.Summary.Sessions))
	msg.Header.Set("Flowlens-Anomalies", strconv.Itoa(rep.Summary.Anomalies))

	if err := s.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish report to %s: %w", s.subject, err)
	}
	if err := s.pub.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush report to %s: %w", s.subject, err)
	}
	slog.Info("report published", "subject", s.subject, "bytes", len(data))
	return nil
}

// Close drains and closes the connection opened by ConnectNATS.
func (s *NATS) Close() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Drain(); err != nil {
		slog.Warn("NATS drain failed", "err", err)
		s.conn.Close()
	}
}
