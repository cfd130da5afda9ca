package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"snap-blaster/clock"
	"snap-blaster/config"
	"snap-blaster/debug"
	"snap-blaster/engine"
	"snap-blaster/midi"
)

// rootOptions are flags shared by every subcommand
type rootOptions struct {
	configPath string
	debug      bool
	logPath    string
	outputs    []string
	tempo      float64
}

// newRootCmd creates the root snap-blaster command with all subcommands attached.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "snap-blaster",
		Short:         "Live MIDI CC scene launcher",
		Long:          "snap-blaster sends scenes of MIDI CC values to synths and effects,\nwith timed transitions, morphs and beat-quantized launches.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/snap-blaster/config.toml)")
	pf.BoolVar(&opts.debug, "debug", false, "write a debug log")
	pf.StringVar(&opts.logPath, "log", "", "debug log path (default ~/.config/snap-blaster/debug.log)")
	pf.StringSliceVarP(&opts.outputs, "out", "o", nil, "MIDI output port (repeatable, substring match)")
	pf.Float64Var(&opts.tempo, "tempo", 0, "tempo in BPM (default from config or project)")

	cmd.AddCommand(
		newRunCmd(opts),
		newPortsCmd(),
		newSendCmd(opts),
		newTriggerCmd(opts),
		newMorphCmd(opts),
		newScenesCmd(),
	)

	return cmd
}

// loadConfig reads the config file and applies flag overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if o.debug {
		cfg.Log.Debug = true
	}
	if o.logPath != "" {
		cfg.Log.Path = o.logPath
	}
	if o.tempo > 0 {
		cfg.Clock.Tempo = o.tempo
	}
	return cfg, nil
}

// setupLogging enables the debug log if configured. The returned func
// flushes and closes it.
func setupLogging(cfg *config.Config) (*zap.Logger, func(), error) {
	if !cfg.Log.Debug {
		return zap.NewNop(), func() {}, nil
	}
	if err := debug.Enable(cfg.Log.Path); err != nil {
		return nil, nil, fmt.Errorf("enable debug log: %w", err)
	}
	return debug.Logger(), debug.Disable, nil
}

func newClock(cfg *config.Config, logger *zap.Logger) *clock.Clock {
	clk := clock.New(cfg.Clock.Tempo,
		clock.WithLogger(logger.Named("clock")),
		clock.WithPollInterval(cfg.PollInterval()),
		clock.WithBeatsPerBar(cfg.Clock.BeatsPerBar),
	)
	clk.Enable(cfg.Clock.Link)
	return clk
}

// newEngine builds the engine; clk may be nil for one-shot sends
func newEngine(cfg *config.Config, clk *clock.Clock, logger *zap.Logger) *engine.Engine {
	opts := []engine.Option{
		engine.WithLogger(logger.Named("engine")),
		engine.WithBatchSize(cfg.Engine.BatchSize),
		engine.WithInterval(cfg.TickInterval()),
	}
	if clk != nil {
		opts = append(opts, engine.WithClock(clk))
	}
	return engine.New(opts...)
}

// openOutputs attaches the outputs named by --out, or the config's
// auto-connect outputs when none are given. Every name is tried; the
// failures come back combined and the outputs that opened stay attached.
func (o *rootOptions) openOutputs(e *engine.Engine, cfg *config.Config, fallback string) error {
	names := o.outputs
	if len(names) == 0 {
		names = cfg.AutoConnectOutputs()
	}
	if len(names) == 0 && fallback != "" {
		names = []string{fallback}
	}
	if len(names) == 0 {
		return fmt.Errorf("no MIDI output: use --out or add [[outputs]] to the config")
	}
	var errs error
	for _, name := range names {
		errs = multierr.Append(errs, e.AddOutput(midi.Descriptor{Name: name}))
	}
	return errs
}

// warnOutputs logs each output failure. It returns err unchanged when no
// output opened at all.
func warnOutputs(logger *zap.Logger, e *engine.Engine, err error) error {
	if err == nil {
		return nil
	}
	for _, oerr := range multierr.Errors(err) {
		logger.Warn("output failed", zap.Error(oerr))
	}
	if len(e.Outputs()) == 0 {
		return err
	}
	return nil
}

// parseChannel accepts 1-16 as printed on hardware
func parseChannel(s string) (int, error) {
	ch, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || ch < 1 || ch > 16 {
		return 0, fmt.Errorf("invalid channel %q (1-16)", s)
	}
	return ch - 1, nil
}

func parseData(what, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 || v > 127 {
		return 0, fmt.Errorf("invalid %s %q (0-127)", what, s)
	}
	return v, nil
}
