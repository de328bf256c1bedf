package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	backend     string
	logLevel    string
	metricsAddr string
	midiPort    string
	osc         string
	ola         string
	audio       bool
	noColor     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "metronome",
		Short: "Metronome - a tempo keeper with up/down tempo buttons",
		Long: fmt.Sprintf(`Metronome pulses an LED and a buzzer on every beat and lets two buttons move the
tempo in steps of %d BPM between %d and %d BPM.

With the sim backend the buttons are emulated from the keyboard: '+' and '-'
change the tempo and 'q' quits.`, rhythm.TempoStep, rhythm.MinBPM, rhythm.MaxBPM),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, cfg)
		},
	}

	opts.bindFlags(cmd.Flags())
	return cmd
}

func (o *options) bindFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&o.backend, "backend", config.BackendSim, "pin backend: sim or rpio")
	flags.StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.StringVar(&o.midiPort, "midi-port", "", "send a MIDI note per beat to this output port")
	flags.StringVar(&o.osc, "osc", "", "send OSC beat messages to host:port")
	flags.StringVar(&o.ola, "ola", "", "flash a DMX channel through the OLA server at this address")
	flags.BoolVar(&o.audio, "audio", false, "play an audible click on every beat")
	flags.BoolVar(&o.noColor, "no-color", false, "disable coloured output")
}

// load builds the configuration: defaults, then the config file, then any flag that was
// set explicitly.
func (o *options) load(flags *pflag.FlagSet) (config.MetronomeConfig, error) {
	cfg := config.NewMetronomeConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadMetronomeConfig(o.configPath); err != nil {
			return cfg, err
		}
	}

	if flags.Changed("backend") {
		cfg.Backend = o.backend
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	if flags.Changed("midi-port") {
		cfg.MIDI.Port = o.midiPort
	}
	if flags.Changed("osc") {
		host, port, err := net.SplitHostPort(o.osc)
		if err != nil {
			return cfg, fmt.Errorf("invalid --osc %q: %w", o.osc, err)
		}
		if cfg.OSC.Port, err = strconv.Atoi(port); err != nil {
			return cfg, fmt.Errorf("invalid --osc port %q: %w", port, err)
		}
		cfg.OSC.Host = host
	}
	if flags.Changed("ola") {
		cfg.DMX.OLA = o.ola
	}
	if flags.Changed("audio") {
		cfg.Audio.Enabled = o.audio
	}
	if o.noColor {
		cfg.Color = false
		color.NoColor = true
	}

	return cfg, cfg.Validate()
}

func printBanner(w io.Writer, cfg config.MetronomeConfig) {
	color.New(color.FgGreen, color.Bold).Fprintln(w, "Metronome started!")
	fmt.Fprintf(w, "Use the green button to increase and the red button to decrease the BPM (%d-%d)\n", rhythm.MinBPM, rhythm.MaxBPM)
	if cfg.Backend == config.BackendSim {
		color.New(color.FgCyan).Fprintln(w, "Simulator: press '+' / '-' to change the tempo, 'q' to quit")
	}
}
