package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snap-blaster/config"
	"snap-blaster/debug"
	"snap-blaster/midi"
	"snap-blaster/project"
	"snap-blaster/scene"
	"snap-blaster/session"
	"snap-blaster/theme"
	"snap-blaster/tui"
)

type runConfig struct {
	palette string
	noWatch bool
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var rc runConfig

	cmd := &cobra.Command{
		Use:   "run [project]",
		Short: "Start the live performance surface",
		Long:  "Opens the project (or the last one used), connects grid controllers as\nthey appear and starts the terminal UI. The project file is reloaded\nwhen it changes on disk.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.UI.LastProject
			if len(args) == 1 {
				path = args[0]
			}
			return runLive(cmd.Context(), opts, cfg, path, rc)
		},
	}

	cmd.Flags().StringVar(&rc.palette, "palette", "", "GIMP .gpl palette for the UI")
	cmd.Flags().BoolVar(&rc.noWatch, "no-watch", false, "do not reload the project when the file changes")

	return cmd
}

// openProject loads path, or starts an empty project when path is empty
func openProject(path string) (*scene.Project, error) {
	if path == "" {
		return scene.NewProject("untitled", ""), nil
	}
	return project.Load(path)
}

func runLive(ctx context.Context, opts *rootOptions, cfg *config.Config, path string, rc runConfig) error {
	p, err := openProject(path)
	if err != nil {
		return err
	}
	if opts.tempo <= 0 {
		cfg.Clock.Tempo = p.Settings.DefaultTempo
	}
	if p.Settings.UseLink {
		cfg.Clock.Link = true
	}

	th := theme.New(nil)
	if rc.palette != "" {
		palette, err := theme.LoadGPL(rc.palette)
		if err != nil {
			return err
		}
		th = theme.New(palette)
	}

	logger, closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	defer midi.CloseDriver()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clk := newClock(cfg, logger)
	clk.OnBar(func(bar int64) {
		debug.LogEvery(16, "clock", "bar %d tempo %.1f peers %d", bar, clk.Tempo(), clk.NumPeers())
	})
	if err := clk.Start(ctx); err != nil {
		return err
	}
	defer clk.Stop()

	eng := newEngine(cfg, clk, logger)
	if err := warnOutputs(logger, eng, opts.openOutputs(eng, cfg, p.Settings.DefaultOutput)); err != nil {
		// the UI is still useful without outputs: scenes can be previewed on the grid
		logger.Warn("no outputs", zap.Error(err))
	}
	if err := eng.Start(); err != nil {
		return err
	}
	defer eng.Close()

	launcher := session.NewLauncher(p, eng, session.WithLogger(logger.Named("session")))
	go launcher.Run(ctx)

	// Create MIDI device manager (handles hot-plug)
	deviceMgr := midi.NewDeviceManager()
	for _, c := range cfg.Controllers {
		if m, err := midi.ParseModel(c.Model); err == nil {
			deviceMgr.PinModel(c.PortName, m)
		}
	}
	go deviceMgr.Run(ctx)
	go launcher.HandleDevices(ctx, deviceMgr.Events())

	if path != "" && !rc.noWatch {
		go watchProject(ctx, path, launcher)
	}

	m := tui.NewModel(launcher, eng, clk, th)
	m.MorphBeats = cfg.UI.MorphBeats
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ui: %w", err)
	}

	if path != "" {
		if abs, err := filepath.Abs(path); err == nil && abs != cfg.UI.LastProject {
			cfg.UI.LastProject = abs
			if err := saveConfig(opts, cfg); err != nil {
				logger.Warn("save config", zap.Error(err))
			}
		}
	}
	return nil
}

func saveConfig(opts *rootOptions, cfg *config.Config) error {
	if opts.configPath != "" {
		return cfg.SaveFile(opts.configPath)
	}
	return cfg.Save()
}

// watchProject swaps in the project whenever its file changes. Broken
// edits keep the previous project loaded.
func watchProject(ctx context.Context, path string, l *session.Launcher) {
	err := project.Watch(ctx, path, func(p *scene.Project, err error) {
		if err != nil {
			debug.Log("project", "reload failed, keeping previous: %v", err)
			return
		}
		l.SetProject(p)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		debug.Log("project", "watch %s: %v", path, err)
	}
}
