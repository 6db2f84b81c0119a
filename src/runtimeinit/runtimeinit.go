// Package runtimeinit builds the process-scoped services shared by the
// resident app and the CLI.
package runtimeinit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"omni-text/src/clipboard"
	"omni-text/src/commands"
	"omni-text/src/config"
	"omni-text/src/history"
	"omni-text/src/inject"
	"omni-text/src/introspect"
	"omni-text/src/keystore"
	"omni-text/src/llm"
	"omni-text/src/permission"
	"omni-text/src/selection"
	"omni-text/src/session"
	"omni-text/src/settings"
	"omni-text/src/status"
)

// APIKeyEnvVar is consulted when the key store has no key for the provider.
const APIKeyEnvVar = "OMNI_TEXT_API_KEY"

const historyFileName = "history.db"

var ErrNoAPIKey = errors.New("no API key configured")

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(cfg *config.Config) *slog.Logger
	// SkipInput leaves the clipboard and keyboard uninitialised, for commands
	// that never touch the foreground application.
	SkipInput bool
}

type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	Settings   *settings.Store
	Keys       *keystore.Store
	History    *history.Store
	Permission *permission.Gate
	Selection  *selection.Service
	Commands   *commands.Handler

	introspector introspect.Introspector
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logger := slog.Default()
	if opts.SetupLogging != nil {
		logger = opts.SetupLogging(cfg)
	}

	rt := &Runtime{Config: cfg, Logger: logger, Permission: permission.New()}

	if rt.Settings, err = settings.Open(cfg.SettingsPath); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if rt.Keys, err = keystore.Open(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to open key store: %w", err)
	}
	if rt.History, err = history.Open(filepath.Join(cfg.DataDir, historyFileName)); err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	if !opts.SkipInput {
		if err := rt.initInput(); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	log.Printf("runtime ready: data=%s clipboard=%s introspection=%s", cfg.DataDir, cfg.ClipboardBackend, cfg.Introspection)
	return rt, nil
}

func (rt *Runtime) initInput() error {
	cfg := rt.Config
	clip := clipboard.New(clipboard.NewBackend(cfg.ClipboardBackend))
	if err := clip.Init(); err != nil {
		return fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	if cfg.Introspection == config.IntrospectionOff {
		rt.introspector = introspect.Unavailable{}
	} else {
		rt.introspector = introspect.New()
	}

	kb := inject.New(inject.RobotBackend{}, inject.Options{
		InterEventDelay: cfg.InterEventDelay,
		SettleDelay:     cfg.SettleDelay,
	})
	rt.Selection = selection.New(rt.introspector, clip, kb, selection.Options{Timeout: cfg.OperationTimeout})
	rt.Commands = commands.New(rt.Selection, rt.Permission)
	return nil
}

// APIKey returns the stored key for provider, or the environment fallback.
func (rt *Runtime) APIKey(provider string) (string, error) {
	if key, ok := rt.Keys.Get(provider); ok && key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(os.Getenv(APIKeyEnvVar)); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w for provider %q: run `omni-text keys set %s` or set %s", ErrNoAPIKey, provider, provider, APIKeyEnvVar)
}

// Transformer builds a text-service client from the current settings.
func (rt *Runtime) Transformer() (*llm.Client, error) {
	p := rt.Settings.Get().Provider
	key, err := rt.APIKey(p.Name)
	if err != nil {
		return nil, err
	}
	return llm.New(llm.Config{
		BaseURL: p.BaseURL,
		APIKey:  key,
		Model:   p.Model,
		Timeout: time.Duration(p.TimeoutSecs) * time.Second,
	}), nil
}

// RunAction executes the enabled action id against the current selection.
func (rt *Runtime) RunAction(ctx context.Context, id string, sink status.Sink, target session.ResultTarget) error {
	if rt.Selection == nil {
		return errors.New("input services not initialised")
	}
	s := rt.Settings.Get()
	action, ok := s.Action(id)
	if !ok || !action.Enabled {
		err := fmt.Errorf("action %q not found or disabled", id)
		if target != nil {
			_ = target.OnFailure(err)
		}
		return err
	}

	client, err := rt.Transformer()
	if err != nil {
		if sink != nil {
			sink.Notify(status.Error)
		}
		if target != nil {
			_ = target.OnFailure(err)
		}
		return err
	}

	_, err = session.Execute(ctx, session.Options{
		Action:       action,
		Selection:    rt.Selection,
		Transform:    client,
		History:      rt.History,
		PrivacyMode:  s.PrivacyMode,
		ProviderName: s.Provider.Name,
		Status:       sink,
		Target:       target,
		Deadline:     time.Duration(s.Provider.TimeoutSecs)*time.Second + 2*rt.Config.OperationTimeout,
	})
	return err
}

func (rt *Runtime) Close() error {
	var errs []error
	if c, ok := rt.introspector.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if rt.History != nil {
		errs = append(errs, rt.History.Close())
	}
	return errors.Join(errs...)
}
