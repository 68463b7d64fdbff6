// minitalk-server receives messages over POSIX user signals.
//
// At startup it prints its address line; hand that to minitalk-client.
// Received messages go to the console and, with -out, to a JSON-lines
// message log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/rdelicado/minitalk/peer"
	"github.com/rdelicado/minitalk/receiver"
	"github.com/rdelicado/minitalk/session"
	filesink "github.com/rdelicado/minitalk/sink/file"
	"github.com/rdelicado/minitalk/transport"
	sigchan "github.com/rdelicado/minitalk/transport/signal"
)

// consoleSink logs each received message; used when no message log is set.
type consoleSink struct {
	log zerolog.Logger
}

func (s consoleSink) Deliver(msg []byte) error {
	s.log.Info().Int("bytes", len(msg)).Str("message", string(msg)).Msg("received")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "minitalk-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to TOML config file")
	output := flag.String("out", "", "append received messages to this JSON-lines file")
	ackUnit := flag.String("ack", "", "acknowledgment unit: none, bit, byte or message")
	ackTo := flag.Int("ack-to", 0, "pid to send acknowledgments to")
	logLevel := flag.String("log-level", "", "zerolog level: debug, info, warn, error")
	flag.Parse()

	cfg := defaultServerConfig()
	if *configPath != "" {
		loaded, err := loadServerConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// flags win over the config file
	if *output != "" {
		cfg.Output = *output
	}
	if *ackUnit != "" {
		unit, err := session.ParseUnit(*ackUnit)
		if err != nil {
			return err
		}
		cfg.AckUnit = unit
	}
	if *ackTo != 0 {
		cfg.AckTo = transport.PeerAddress(*ackTo)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	if cfg.AckUnit != session.UnitNone && cfg.AckTo == transport.NoPeer {
		log.Warn().Msg("acknowledgments enabled but no ack-to pid set, acks will be skipped")
	}

	var sink receiver.Sink = consoleSink{log: log}
	if cfg.Output != "" {
		fs, err := filesink.New(cfg.Output)
		if err != nil {
			return err
		}
		defer fs.Close()
		sink = fs
		log.Info().Str("path", cfg.Output).Msg("logging messages to file")
	}

	ch := sigchan.New()
	defer ch.Close()

	sess := session.NewContext(cfg.AckTo)
	rx := receiver.New(ch, sess, sink, receiver.Config{
		AckUnit: cfg.AckUnit,
		AckTo:   cfg.AckTo,
		Logger:  log,
	})

	// the out-of-band address handoff: this line is what the operator
	// passes to minitalk-client
	fmt.Println(peer.Announce(sigchan.Self()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rx.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	log.Info().
		Uint64("notifications", sess.NotificationsSeen.Load()).
		Uint64("messages", sess.MessagesCompleted.Load()).
		Msg("shutting down")
	return nil
}
