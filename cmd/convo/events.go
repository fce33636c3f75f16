package main

import (
	"context"
	"log/slog"

	"github.com/matiasleandrokruk/convo/internal/domain/session"
	"github.com/matiasleandrokruk/convo/internal/infra/config"
	"github.com/matiasleandrokruk/convo/internal/infra/eventbus"
	"github.com/matiasleandrokruk/convo/internal/infra/natsbridge"
)

// startEvents returns the bus sessions publish on and a func that tears it
// down. When NATS_URL is set the session topics are forwarded to NATS until
// the returned func is called.
func startEvents(ctx context.Context, cfg config.Config, logger *slog.Logger) (*eventbus.Bus, func(), error) {
	bus := eventbus.New()
	if cfg.NATSURL == "" {
		return bus, bus.Close, nil
	}

	nc, err := natsbridge.Connect(cfg.NATSURL)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	bridge := natsbridge.New(nc, cfg.NATSSubjectPrefix, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		bridge.Run(ctx, bus, session.TopicTurnAppended, session.TopicTerminated)
	}()
	logger.Info("forwarding session events to NATS", "url", cfg.NATSURL, "prefix", cfg.NATSSubjectPrefix)

	stop := func() {
		bus.Close()
		<-done
		if err := nc.Drain(); err != nil {
			logger.Warn("nats drain failed", "error", err)
		}
	}
	return bus, stop, nil
}

// closerFunc adapts a teardown func to io.Closer for server.NewServer.
type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
