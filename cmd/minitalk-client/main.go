// minitalk-client sends a message to a minitalk-server over POSIX user
// signals.
//
//	minitalk-client -to 1234 "hello there"
//
// The -to value is the server's announcement line or bare PID. With an
// acknowledgment unit configured the client waits for the server's
// confirmations and retries lost units.
//
// Exit codes: 0 delivered, 1 usage or config error, 2 target unreachable,
// 3 delivery failed mid-transfer (partial delivery possible).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/rdelicado/minitalk/peer"
	"github.com/rdelicado/minitalk/session"
	"github.com/rdelicado/minitalk/transmitter"
	"github.com/rdelicado/minitalk/transport"
	sigchan "github.com/rdelicado/minitalk/transport/signal"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to TOML config file")
	to := flag.String("to", "", "server address: announcement line or bare pid")
	ackUnit := flag.String("ack", "", "acknowledgment unit: none, bit, byte or message")
	pace := flag.Duration("pace", 0, "dwell between emissions (0 uses the default)")
	logLevel := flag.String("log-level", "", "zerolog level: debug, info, warn, error")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	cfg := defaultClientConfig()
	if *configPath != "" {
		loaded, err := loadClientConfig(*configPath)
		if err != nil {
			log.Error().Err(err).Msg("bad config")
			return 1
		}
		cfg = loaded
	}

	if *ackUnit != "" {
		unit, err := session.ParseUnit(*ackUnit)
		if err != nil {
			log.Error().Err(err).Msg("bad ack unit")
			return 1
		}
		cfg.AckUnit = unit
	}
	if *pace != 0 {
		cfg.Pace = *pace
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Error().Err(err).Msg("bad log level")
		return 1
	}
	log = log.Level(level)

	if *to == "" {
		log.Error().Msg("missing -to: the server's address line or pid")
		return 1
	}
	if flag.NArg() == 0 {
		log.Error().Msg("missing message argument")
		return 1
	}
	msg := []byte(strings.Join(flag.Args(), " "))

	target, err := peer.Parse(*to)
	if err != nil {
		log.Error().Err(err).Msg("bad server address")
		return 1
	}

	// fail fast before opening a channel: a dead target cannot be retried
	if err := sigchan.Probe(target); err != nil {
		log.Error().Int("pid", int(target)).Msg("target process is not reachable")
		return 2
	}

	ch := sigchan.New()
	defer ch.Close()

	sess := session.NewContext(target)
	tx := transmitter.New(ch, sess, transmitter.Config{
		Pace:       cfg.Pace,
		AckUnit:    cfg.AckUnit,
		AckTimeout: cfg.AckTimeout,
		MaxRetries: cfg.MaxRetries,
		Logger:     log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Int("pid", int(target)).Int("bytes", len(msg)).
		Stringer("ack_unit", cfg.AckUnit).Msg("sending")

	if err := tx.Send(ctx, msg); err != nil {
		switch {
		case errors.Is(err, transport.ErrAddressUnreachable):
			log.Error().Err(err).Msg("target vanished")
			return 2
		case errors.Is(err, transmitter.ErrDeliveryFailed):
			var derr *transmitter.DeliveryError
			if errors.As(err, &derr) {
				log.Error().Int("byte", derr.ByteIndex).Int("retries", derr.Retries).
					Msg("delivery failed, message may be partially delivered")
			}
			return 3
		default:
			log.Error().Err(err).Msg("send failed")
			return 3
		}
	}

	fmt.Printf("delivered %d bytes to pid %d (retries: %d)\n",
		len(msg), target, sess.Retries.Load())
	return 0
}
