// Command omni-text-cli exposes the selection commands, action runs and the
// local stores from a terminal. Selection commands go through a running
// resident when there is one.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"omni-text/src/commands"
	"omni-text/src/config"
	"omni-text/src/logutil"
	"omni-text/src/permission"
	"omni-text/src/runtimeinit"
	"omni-text/src/selection"
	"omni-text/src/session"
	"omni-text/src/singleinstance"
	"omni-text/src/status"
)

type cliOptions struct {
	dataDir    string
	jsonOutput bool
	verbose    bool
	standalone bool
}

type delegator interface {
	Delegate(ctx context.Context, req singleinstance.Request) (bool, string, error)
}

// cli carries the injectable dependencies of every subcommand.
type cli struct {
	opts      *cliOptions
	out       io.Writer
	in        io.Reader
	bootstrap func(opts runtimeinit.Options) (*runtimeinit.Runtime, error)
	client    func(cfg *config.Config) delegator
}

func main() {
	c := newCLI(os.Stdout, os.Stdin)
	if err := c.root().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCLI(out io.Writer, in io.Reader) *cli {
	return &cli{
		opts:      &cliOptions{},
		out:       out,
		in:        in,
		bootstrap: runtimeinit.Bootstrap,
		client: func(cfg *config.Config) delegator {
			return singleinstance.NewClient(cfg.ResidentPort)
		},
	}
}

func (c *cli) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "omni-text-cli",
		Short:         "Capture, replace and rewrite the selected text",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&c.opts.dataDir, "data-dir", "", "Directory for settings, keys and history")
	cmd.PersistentFlags().BoolVar(&c.opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.PersistentFlags().BoolVarP(&c.opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.PersistentFlags().BoolVar(&c.opts.standalone, "standalone", false, "Never delegate to a running resident")

	cmd.AddCommand(
		c.getCmd(),
		c.replaceCmd(),
		c.permissionCmd(),
		c.runCmd(),
		c.keysCmd(),
		c.historyCmd(),
		c.testConnectionCmd(),
	)
	return cmd
}

func (c *cli) loadOptions() config.LoadOptions {
	return config.LoadOptions{DataDirOverride: c.opts.dataDir, VerboseOverride: c.opts.verbose}
}

// setupLogging keeps stdout clean: logs go to stderr with --verbose and are
// discarded otherwise.
func (c *cli) setupLogging(cfg *config.Config) *slog.Logger {
	var w io.Writer = io.Discard
	if c.opts.verbose {
		w = os.Stderr
	}
	log.SetOutput(w)
	logger := logutil.New(w, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

func (c *cli) runtime(skipInput bool) (*runtimeinit.Runtime, error) {
	return c.bootstrap(runtimeinit.Options{
		LoadOptions:  c.loadOptions(),
		SetupLogging: c.setupLogging,
		SkipInput:    skipInput,
	})
}

// delegate sends req to the resident. It reports false when there is none
// or --standalone is set.
func (c *cli) delegate(ctx context.Context, req singleinstance.Request) (bool, string, error) {
	if c.opts.standalone {
		return false, "", nil
	}
	cfg, err := config.LoadWithOptions(c.loadOptions())
	if err != nil {
		return false, "", err
	}
	c.setupLogging(cfg)
	return c.client(cfg).Delegate(ctx, req)
}

// dispatch runs a named command on the resident, or locally when none is running.
func (c *cli) dispatch(ctx context.Context, name string, args []string) (string, error) {
	body := ""
	if len(args) > 0 {
		body = args[0]
	}
	delegated, out, err := c.delegate(ctx, singleinstance.Request{Kind: singleinstance.KindCommand, Name: name, Body: body})
	if delegated {
		return out, err
	}

	needsInput := name == commands.GetSelectedText || name == commands.ReplaceSelectedText
	if !needsInput {
		return commands.New(nil, permission.New()).Dispatch(ctx, name, args)
	}
	rt, err := c.runtime(false)
	if err != nil {
		return "", err
	}
	defer rt.Close()
	out, err = rt.Commands.Dispatch(ctx, name, args)
	if err != nil && selection.KindOf(err) != selection.KindUnknown {
		return "", fmt.Errorf("%s", selection.UserMessage(err))
	}
	return out, err
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the text selected in the foreground application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := c.dispatch(cmd.Context(), commands.GetSelectedText, nil)
			if err != nil {
				return err
			}
			if c.opts.jsonOutput {
				return c.writeJSON(map[string]any{"text": text, "character_count": len([]rune(text))})
			}
			fmt.Fprint(c.out, text)
			return nil
		},
	}
}

func (c *cli) replaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replace <text|->",
		Short: "Replace the selection with text ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			if text == "-" {
				data, err := io.ReadAll(c.in)
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
				text = string(data)
			}
			_, err := c.dispatch(cmd.Context(), commands.ReplaceSelectedText, []string{text})
			return err
		},
	}
}

func (c *cli) permissionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "permission", Short: "Accessibility permission"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "check",
			Short: "Print whether accessibility permission is granted (never prompts)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				out, err := c.dispatch(cmd.Context(), commands.CheckAccessibilityPermission, nil)
				if err != nil {
					return err
				}
				if c.opts.jsonOutput {
					return c.writeJSON(map[string]bool{"granted": out == "true"})
				}
				fmt.Fprintln(c.out, out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "request",
			Short: "Ask the OS to show the accessibility permission prompt",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := c.dispatch(cmd.Context(), commands.RequestAccessibilityPermission, nil)
				return err
			},
		},
	)
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <action-id>",
		Short: "Run a rewrite action on the current selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			delegated, text, err := c.delegate(cmd.Context(), singleinstance.Request{Kind: singleinstance.KindAction, Name: id})
			if !delegated {
				text, err = c.runLocal(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			if c.opts.jsonOutput {
				return c.writeJSON(map[string]string{"action": id, "text": text})
			}
			fmt.Fprint(c.out, text)
			return nil
		},
	}
}

// captureTarget keeps the result of a standalone run for printing.
type captureTarget struct {
	text string
}

func (t *captureTarget) OnSuccess(res session.Result) error {
	t.text = res.Text
	return nil
}

func (t *captureTarget) OnFailure(error) error { return nil }

func (c *cli) runLocal(ctx context.Context, id string) (string, error) {
	rt, err := c.runtime(false)
	if err != nil {
		return "", err
	}
	defer rt.Close()
	target := &captureTarget{}
	if err := rt.RunAction(ctx, id, status.Logger{}, target); err != nil {
		return "", fmt.Errorf("%s", session.Message(err))
	}
	return target.text, nil
}

func (c *cli) keysCmd() *cobra.Command {
	var show bool
	cmd := &cobra.Command{Use: "keys", Short: "Manage provider API keys"}

	set := &cobra.Command{
		Use:   "set <provider> <key|->",
		Short: "Store the API key for a provider ('-' reads stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[1]
			if key == "-" {
				data, err := io.ReadAll(c.in)
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
				key = string(data)
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("empty key")
			}
			return c.withRuntime(func(rt *runtimeinit.Runtime) error {
				if err := rt.Keys.Set(args[0], key); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Stored key for %s (%s)\n", args[0], logutil.RedactKey(key))
				return nil
			})
		},
	}
	get := &cobra.Command{
		Use:   "get <provider>",
		Short: "Print the stored key for a provider (redacted unless --show)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(func(rt *runtimeinit.Runtime) error {
				key, ok := rt.Keys.Get(args[0])
				if !ok {
					return fmt.Errorf("no key stored for %s", args[0])
				}
				if !show {
					key = logutil.RedactKey(key)
				}
				fmt.Fprintln(c.out, key)
				return nil
			})
		},
	}
	get.Flags().BoolVar(&show, "show", false, "Print the full key")
	del := &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove the stored key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(func(rt *runtimeinit.Runtime) error {
				return rt.Keys.Delete(args[0])
			})
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List providers that have a stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(func(rt *runtimeinit.Runtime) error {
				providers := rt.Keys.Providers()
				if c.opts.jsonOutput {
					return c.writeJSON(providers)
				}
				for _, p := range providers {
					fmt.Fprintln(c.out, p)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(set, get, del, list)
	return cmd
}

type historyJSON struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Action     string `json:"action_name"`
	Original   string `json:"original_text"`
	Result     string `json:"result_text"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	DurationMS int64  `json:"duration_ms"`
	TokensUsed int64  `json:"tokens_used,omitempty"`
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{Use: "history", Short: "Search or clear past rewrites"}

	search := &cobra.Command{
		Use:   "search [query]",
		Short: "List past rewrites matching query, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return c.withRuntime(func(rt *runtimeinit.Runtime) error {
				entries, err := rt.History.Search(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				if c.opts.jsonOutput {
					out := make([]historyJSON, 0, len(entries))
					for _, e := range entries {
						out = append(out, historyJSON{
							ID: e.ID, Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
							Action: e.ActionName, Original: e.OriginalText, Result: e.ResultText,
							Provider: e.Provider, Model: e.Model, DurationMS: e.DurationMS, TokensUsed: e.TokensUsed,
						})
					}
					return c.writeJSON(out)
				}
				for _, e := range entries {
					fmt.Fprintf(c.out, "%s  %s  %-12s %s -> %s\n", e.ID, e.Timestamp.Local().Format("2006-01-02 15:04"),
						e.ActionName, logutil.Preview(e.OriginalText, 30), logutil.Preview(e.ResultText, 30))
				}
				return nil
			})
		},
	}
	search.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(func(rt *runtimeinit.Runtime) error {
				return rt.History.Delete(cmd.Context(), args[0])
			})
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(func(rt *runtimeinit.Runtime) error {
				n, err := rt.History.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Removed %d entries\n", n)
				return nil
			})
		},
	}
	cmd.AddCommand(search, del, clearCmd)
	return cmd
}

func (c *cli) testConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Send a minimal prompt to the configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(func(rt *runtimeinit.Runtime) error {
				client, err := rt.Transformer()
				if err != nil {
					return err
				}
				res := client.TestConnection(cmd.Context())
				if c.opts.jsonOutput {
					return c.writeJSON(map[string]any{
						"success": res.Success, "latency_ms": res.LatencyMS,
						"model_name": res.ModelName, "error": res.Error,
					})
				}
				if !res.Success {
					return fmt.Errorf("connection failed after %dms: %s", res.LatencyMS, res.Error)
				}
				fmt.Fprintf(c.out, "OK: %s responded in %dms\n", res.ModelName, res.LatencyMS)
				return nil
			})
		},
	}
}

// withRuntime bootstraps without input services, runs fn and closes.
func (c *cli) withRuntime(fn func(rt *runtimeinit.Runtime) error) error {
	rt, err := c.runtime(true)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func (c *cli) writeJSON(v any) error {
	encoder := json.NewEncoder(c.out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
