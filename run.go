package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/nickysemenza/gola"
	"github.com/robmorgan/metronome/actuator"
	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/controller"
	"github.com/robmorgan/metronome/gpio"
	"github.com/robmorgan/metronome/input"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/metrics"
	"golang.org/x/term"
	"k8s.io/utils/clock"
)

// Run configures the outputs and runs the metronome until ctx is cancelled. Failing to
// configure an output aborts startup.
func Run(ctx context.Context, cfg config.MetronomeConfig) error {
	return run(ctx, cfg, os.Stdout)
}

func run(ctx context.Context, cfg config.MetronomeConfig, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// initialize the logger
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.GetProjectLogger()

	var (
		hw      controller.Hardware
		pins    actuator.Group
		logSink = newLineWriter(os.Stderr)
	)
	logger.SetOutput(logSink)

	switch cfg.Backend {
	case config.BackendRPi:
		log.Info("Initializing Raspberry Pi GPIO...")
		rpi, err := gpio.OpenRPi()
		if err != nil {
			return err
		}
		defer rpi.Close()

		hw.Up = rpi.Input(cfg.Pins.Up)
		hw.Down = rpi.Input(cfg.Pins.Down)
		pins = append(pins, actuator.NewPin(rpi.Output(cfg.Pins.LED)), actuator.NewPin(rpi.Output(cfg.Pins.Buzzer)))

	default:
		log.Info("Initializing simulated GPIO...")
		up, down := gpio.NewSimPin(gpio.High), gpio.NewSimPin(gpio.High)
		hw.Up, hw.Down = up, down
		pins = append(pins, actuator.NewPin(gpio.NewSimPin(gpio.Low)))

		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			state, err := term.MakeRaw(fd)
			if err != nil {
				return err
			}
			defer term.Restore(fd, state)
			// raw mode disables the terminal's newline translation
			logSink.crlf = true
		}
		kb := input.NewKeyboard(clock.RealClock{}, os.Stdin, up, down, cancel)
		go kb.Run(ctx)
	}

	// all diagnostics go through a non-blocking queue drained by its own goroutine
	logs := logger.NewAsyncWriter(logSink, logger.DefaultBacklog)
	opts := []controller.Option{controller.WithLogWriter(logs)}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var promRecorder *metrics.PrometheusRecorder
	if cfg.MetricsAddr != "" {
		promRecorder = metrics.NewPrometheusRecorder(nil)
		promRecorder.RegisterLogDrops(logs.Dropped)
		promRecorder.RegisterLogWriteErrors(logs.WriteErrors)
		recorder = promRecorder
		opts = append(opts, controller.WithRecorder(recorder))
	}

	extra, closeExtra, err := openExtraOutputs(cfg, recorder)
	if err != nil {
		return err
	}
	defer closeExtra()
	hw.Actuator = pins
	hw.Outputs = extra
	screen := newLineWriter(stdout)
	screen.crlf = logSink.crlf
	hw.Display = screen

	c, err := controller.New(cfg, hw, opts...)
	if err != nil {
		return err
	}

	// every output is configured: from here on nothing aborts startup
	printBanner(screen, cfg)
	logger.SetOutput(logs)
	defer logger.SetOutput(logSink)
	if promRecorder != nil {
		go serveMetrics(ctx, cfg.MetricsAddr, promRecorder)
	}
	return c.Run(ctx)
}

// openExtraOutputs connects the optional MIDI, OSC, DMX and audio outputs. Each one is
// queued behind an actuator.Async so it can never hold up a beat.
func openExtraOutputs(cfg config.MetronomeConfig, recorder metrics.Recorder) ([]*actuator.Async, func(), error) {
	log := logger.GetProjectLogger()

	var (
		outputs []*actuator.Async
		closers []func()
	)
	add := func(name string, out actuator.Actuator) {
		outputs = append(outputs, actuator.NewAsync(name, out, actuator.WithAsyncRecorder(recorder)))
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.MIDI.Port != "" {
		log.Infof("Connecting to MIDI port %q...", cfg.MIDI.Port)
		send, closeMIDI, err := openMIDI(cfg.MIDI.Port)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, closeMIDI)
		add("midi", actuator.NewMIDI(send, cfg.MIDI.Channel, cfg.MIDI.Key, cfg.MIDI.Velocity))
	}

	if cfg.OSC.Host != "" {
		log.Infof("Sending OSC beats to %s:%d%s", cfg.OSC.Host, cfg.OSC.Port, cfg.OSC.Address)
		add("osc", actuator.NewOSC(osc.NewClient(cfg.OSC.Host, cfg.OSC.Port), cfg.OSC.Address))
	}

	if cfg.DMX.OLA != "" {
		log.Info("Connecting to OLA...")
		client, err := gola.New(cfg.DMX.OLA)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		dmx, err := actuator.NewDMX(client, cfg.DMX.Universe, cfg.DMX.Channel)
		if err != nil {
			client.Close()
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, dmx.Close)
		add("dmx", dmx)
	}

	if cfg.Audio.Enabled {
		log.Info("Initializing audio output...")
		play, err := openSpeaker()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		add("audio", actuator.NewClick(play, cfg.Audio.Frequency, cfg.PulseWidth))
	}

	return outputs, closeAll, nil
}

func serveMetrics(ctx context.Context, addr string, recorder *metrics.PrometheusRecorder) {
	log := logger.GetProjectLogger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(recorder.Registry()))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Metrics server failed")
	}
}
