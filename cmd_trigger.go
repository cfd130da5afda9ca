package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"snap-blaster/clock"
	"snap-blaster/config"
	"snap-blaster/engine"
	"snap-blaster/midi"
	"snap-blaster/project"
	"snap-blaster/scene"
)

// headless is an engine plus clock for one-shot commands
type headless struct {
	cfg     *config.Config
	project *scene.Project
	clock   *clock.Clock
	engine  *engine.Engine
	cancel  context.CancelFunc
	closers []func()
}

// startHeadless loads the project, opens outputs and starts clock and engine
func (o *rootOptions) startHeadless(ctx context.Context, path string) (*headless, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	p, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	if o.tempo <= 0 {
		cfg.Clock.Tempo = p.Settings.DefaultTempo
	}

	logger, closeLog, err := setupLogging(cfg)
	if err != nil {
		return nil, err
	}
	h := &headless{cfg: cfg, project: p, closers: []func(){closeLog, midi.CloseDriver}}

	h.clock = newClock(cfg, logger)
	h.engine = newEngine(cfg, h.clock, logger)
	if err := warnOutputs(logger, h.engine, o.openOutputs(h.engine, cfg, p.Settings.DefaultOutput)); err != nil {
		h.close()
		return nil, err
	}

	ctx, h.cancel = context.WithCancel(ctx)
	if err := h.clock.Start(ctx); err != nil {
		h.close()
		return nil, err
	}
	if err := h.engine.Start(); err != nil {
		h.close()
		return nil, err
	}
	return h, nil
}

func (h *headless) scene(ref string) (*scene.Scene, error) {
	sc, ok := h.project.FindScene(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", scene.ErrSceneNotFound, ref)
	}
	return sc, nil
}

// wait blocks until the engine is idle, then shuts everything down
func (h *headless) wait(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := h.engine.WaitIdle(ctx)
	if cerr := h.close(); err == nil {
		err = cerr
	}
	return err
}

func (h *headless) close() error {
	var err error
	if h.engine != nil {
		err = h.engine.Close()
	}
	if h.cancel != nil {
		h.cancel()
		h.clock.Stop()
	}
	for _, fn := range h.closers {
		fn()
	}
	return err
}

func newTriggerCmd(opts *rootOptions) *cobra.Command {
	var (
		quantize int
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "trigger <project> <scene>",
		Short: "Activate a scene and wait for its transitions",
		Long:  "Loads a project file, activates the scene (by id or name) and exits\nonce every transition has finished.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.startHeadless(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sc, err := h.scene(args[1])
			if err != nil {
				h.close()
				return err
			}

			if cmd.Flags().Changed("quantize") {
				err = h.engine.ActivateScene(sc, uint8(min(max(quantize, 0), 255)))
			} else {
				err = h.engine.TriggerScene(sc)
			}
			if err != nil {
				h.close()
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d values, %s)\n", sc.Name, len(sc.Values), sc.Trigger)
			return h.wait(cmd.Context(), timeout)
		},
	}

	cmd.Flags().IntVarP(&quantize, "quantize", "q", 0, "override the scene trigger: wait for a multiple of this many beats (0 = now)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up waiting after this long (0 = never)")

	return cmd
}
