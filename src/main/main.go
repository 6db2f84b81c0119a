// Command omni-text is the resident tray app: it owns the action hotkeys and
// answers delegated requests from the CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"omni-text/src/config"
	"omni-text/src/eventloop"
	"omni-text/src/hotkey"
	"omni-text/src/logutil"
	"omni-text/src/notification"
	"omni-text/src/runtimeinit"
	"omni-text/src/session"
	"omni-text/src/settings"
	"omni-text/src/singleinstance"
	"omni-text/src/status"
	"omni-text/src/tray"
	"omni-text/src/worker"
)

type mainOptions struct {
	runOnce string
	dataDir string
	verbose bool
}

// delegator is satisfied by singleinstance.Client.
type delegator interface {
	Delegate(ctx context.Context, req singleinstance.Request) (bool, string, error)
}

func main() {
	enableDPIAwareness()

	// The tray must own the main OS thread on macOS.
	runtime.LockOSThread()

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "omni-text",
		Short:         "Rewrite the selected text in any application",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadOpts := config.LoadOptions{DataDirOverride: opts.dataDir, VerboseOverride: opts.verbose}
			if opts.runOnce != "" {
				return runOnce(loadOpts, opts.runOnce)
			}
			return runResident(loadOpts)
		},
	}
	cmd.Flags().StringVar(&opts.runOnce, "run-once", "", "Run one action by id and exit")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Directory for settings, keys and history")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to their GNU form.
func normalizeLegacyArgs(args []string) []string {
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"run-once", "data-dir", "verbose"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}

func setupLogging(cfg *config.Config) *slog.Logger {
	return logutil.Setup(logutil.Options{
		EnableFileLogging: cfg.EnableFileLogging,
		Dir:               cfg.DataDir,
		Format:            cfg.LogFormat,
		Level:             cfg.LogLevel,
	})
}

func runOnce(loadOpts config.LoadOptions, actionID string) error {
	cfg, err := config.LoadWithOptions(loadOpts)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	return handleRunOnceWithDelegation(actionID, singleinstance.NewClient(cfg.ResidentPort), func() error {
		rt, err := runtimeinit.Bootstrap(runtimeinit.Options{LoadOptions: loadOpts, SetupLogging: setupLogging})
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.RunAction(context.Background(), actionID, status.Logger{}, session.LogTarget{}); err != nil {
			return errors.New(session.Message(err))
		}
		return nil
	})
}

// handleRunOnceWithDelegation hands the action to a running resident, or
// runs fallback when none answers. A resident that answers with an error is
// not retried locally.
func handleRunOnceWithDelegation(actionID string, client delegator, fallback func() error) error {
	delegated, _, err := client.Delegate(context.Background(), singleinstance.Request{Kind: singleinstance.KindAction, Name: actionID})
	if delegated {
		log.Printf("Delegated %s to resident", actionID)
		return err
	}
	log.Printf("No resident detected, running %s standalone", actionID)
	return fallback()
}

func runResident(loadOpts config.LoadOptions) error {
	cfg, err := config.LoadWithOptions(loadOpts)
	if err != nil {
		return err
	}
	if singleinstance.DetectResident(context.Background(), cfg.ResidentPort) {
		fmt.Printf("omni-text is already running on port %d\n", cfg.ResidentPort)
		os.Exit(1)
	}

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{LoadOptions: loadOpts, SetupLogging: setupLogging})
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.Permission.Check() {
		log.Printf("Accessibility permission not granted; requesting")
		rt.Permission.Request()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
		tray.Quit()
	}()

	menu := tray.Menu{
		Enabled: rt.Settings.Get().Enabled,
		OnToggle: func(enabled bool) {
			if _, err := rt.Settings.Update(func(s *settings.Settings) { s.Enabled = enabled }); err != nil {
				log.Printf("failed to save enabled state: %v", err)
			}
		},
		OnQuit: cancel,
	}

	tray.Run(menu, func(ind *tray.Indicator) {
		go serve(ctx, rt, ind)
	}, cancel)
	return nil
}

// serve runs the event loop and keeps hotkeys in sync with the settings file.
func serve(ctx context.Context, rt *runtimeinit.Runtime, ind *tray.Indicator) {
	defer tray.Quit()
	sink := status.Multi(status.Logger{}, ind)

	loop := eventloop.New(eventloop.Options{
		Server: singleinstance.NewServer(rt.Config.ResidentPort),
		Pool:   worker.New(1),
		Action: func(ctx context.Context, id string, target session.ResultTarget) error {
			return rt.RunAction(ctx, id, sink, target)
		},
		Commands:     rt.Commands,
		HotkeyTarget: notifyTarget{notifier: notification.New()},
		Message:      session.Message,
		OnBusy:       func(id string) { log.Printf("Busy, dropped %s", id) },
	})

	registry := hotkey.NewRegistry(func(id string) {
		if !rt.Settings.Get().Enabled {
			log.Printf("Disabled, ignoring hotkey for %s", id)
			return
		}
		loop.Trigger(id)
	})
	defer registry.Close()
	registerHotkeys(registry, rt.Settings.Get())

	if err := rt.Settings.Watch(ctx, func(s settings.Settings) {
		log.Printf("Settings changed, re-registering hotkeys")
		registerHotkeys(registry, s)
	}); err != nil {
		log.Printf("settings watch unavailable: %v", err)
	}

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("event loop stopped: %v", err)
		ind.Notify(status.Error)
	}
	ind.Close()
}

func registerHotkeys(reg *hotkey.Registry, s settings.Settings) {
	reg.UnregisterAll()
	for _, a := range s.EnabledActions() {
		if a.Hotkey == "" {
			continue
		}
		if err := reg.Register(a.ID, a.Hotkey); err != nil {
			log.Printf("Failed to register %s for %s: %v", a.Hotkey, a.ID, err)
		}
	}
}

// notifyTarget tells the user why a hotkey action left the selection alone.
type notifyTarget struct {
	notifier notification.Notifier
}

func (t notifyTarget) OnSuccess(res session.Result) error {
	return session.LogTarget{}.OnSuccess(res)
}

func (t notifyTarget) OnFailure(err error) error {
	_ = session.LogTarget{}.OnFailure(err)
	notification.Show(t.notifier, "Omni Text", session.Message(err))
	return nil
}
