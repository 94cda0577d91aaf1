// cbsmon configures the cell broadcast topics of a RIL modem and prints every received broadcast PDU.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ftl/ril-cbs/cbs"
	"github.com/ftl/ril-cbs/com"
	"github.com/ftl/ril-cbs/internal/config"
	"github.com/ftl/ril-cbs/ril"
	"github.com/ftl/ril-cbs/serial"
)

const clearTimeout = 5 * time.Second

func main() {
	var cfgPath string
	var topics string
	flag.StringVar(&cfgPath, "config", "", "path to config yaml")
	flag.StringVar(&topics, "topics", "", "comma separated topics and topic ranges, overrides the config")
	flag.Parse()

	cfg := config.DefaultConfig()
	if cfgPath != "" {
		var err error
		cfg, err = config.LoadFromPath(cfgPath)
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
	}
	if topics != "" {
		cfg.Topics = topics
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log.Level)

	var tracer io.Writer
	if cfg.Log.Trace != "" {
		traceFile, err := os.Create(cfg.Log.Trace)
		if err != nil {
			return fmt.Errorf("cannot create trace file: %w", err)
		}
		defer traceFile.Close()
		tracer = traceFile
	}

	channel, err := openChannel(cfg.Device, tracer, com.Config{Logger: &logger})
	if err != nil {
		return err
	}
	defer channel.Close()

	printer := &printer{
		out:   os.Stdout,
		ready: make(chan struct{}),
	}
	adapter := cbs.New(channel, printer, cbs.Config{
		LogPrefix:         cfg.Log.Prefix,
		Logger:            &logger,
		StrictTopicRanges: cfg.StrictTopicRanges,
	})
	defer adapter.Remove()

	select {
	case <-printer.ready:
	case <-ctx.Done():
		return nil
	}
	logger.Info().Msg("cell broadcast service ready")

	if cfg.Topics != "" {
		adapter.SetTopics(cfg.Topics, func(err error) {
			if err != nil {
				logger.Error().Err(err).Str("topics", cfg.Topics).Msg("cannot set topics")
				return
			}
			logger.Info().Str("topics", cfg.Topics).Msg("topics configured")
			if cfg.Activate {
				adapter.SetActivation(true, func(err error) {
					if err != nil {
						logger.Error().Err(err).Msg("cannot activate cell broadcasts")
					}
				})
			}
		})
	}

	<-ctx.Done()

	cleared := make(chan error, 1)
	adapter.ClearTopics(func(err error) {
		cleared <- err
	})
	select {
	case err := <-cleared:
		if err != nil {
			logger.Warn().Err(err).Msg("cannot clear topics")
		}
	case <-time.After(clearTimeout):
		logger.Warn().Msg("timeout while clearing topics")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	zerologLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zerologLevel = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(zerologLevel).With().Timestamp().Logger()
}

func openChannel(device config.Device, tracer io.Writer, comConfig com.Config) (*com.Channel, error) {
	switch {
	case device.Port != "":
		return openPort(device.Port, tracer, comConfig)
	case device.Socket != "":
		channel, err := serial.Dial("unix", device.Socket, tracer, comConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot connect to %s: %w", device.Socket, err)
		}
		return channel, nil
	default:
		portName, err := serial.FindModemPortName(device.Detect)
		if err != nil {
			return nil, err
		}
		return openPort(portName, tracer, comConfig)
	}
}

func openPort(portName string, tracer io.Writer, comConfig com.Config) (*com.Channel, error) {
	var channel *com.Channel
	var err error
	if tracer != nil {
		channel, err = serial.OpenWithTrace(portName, tracer, comConfig)
	} else {
		channel, err = serial.Open(portName, comConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", portName, err)
	}
	return channel, nil
}

// printer is the upper layer of the adapter: it prints every PDU as hex.
type printer struct {
	out   io.Writer
	ready chan struct{}
}

func (p *printer) Register() {
	close(p.ready)
}

func (p *printer) Notify(pdu []byte) {
	fmt.Fprintf(p.out, "%s %3d %s\n", time.Now().Format(time.RFC3339), len(pdu), ril.BinaryToHex(pdu))
}
