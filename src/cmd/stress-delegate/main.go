// Command stress-delegate fires concurrent requests at a running resident to
// check that it serialises work and rejects overlap with a busy reply.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"omni-text/src/commands"
	"omni-text/src/config"
	"omni-text/src/singleinstance"
)

type stressOptions struct {
	n        int
	action   string
	command  string
	port     int
	deadline time.Duration
}

type tally struct {
	ok, busy, failed, missing atomic.Int32
}

func (t *tally) record(delegated bool, err error) {
	switch {
	case !delegated:
		t.missing.Add(1)
	case err == nil:
		t.ok.Add(1)
	case strings.Contains(strings.ToLower(err.Error()), "busy"):
		t.busy.Add(1)
	default:
		t.failed.Add(1)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-delegate",
		Short:         "Stress test delegation to the resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.action, "action", "", "action id to run (overrides --command)")
	cmd.Flags().StringVar(&opts.command, "command", commands.CheckAccessibilityPermission, "command name to dispatch")
	cmd.Flags().IntVar(&opts.port, "port", 0, "resident port (default from configuration)")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func (o stressOptions) request() singleinstance.Request {
	if o.action != "" {
		return singleinstance.Request{Kind: singleinstance.KindAction, Name: o.action}
	}
	return singleinstance.Request{Kind: singleinstance.KindCommand, Name: o.command}
}

func runWithOptions(opts stressOptions) error {
	port := opts.port
	if port == 0 {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		port = cfg.ResidentPort
	}

	var wg sync.WaitGroup
	var counts tally
	req := opts.request()

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, _, err := singleinstance.NewClient(port).Delegate(ctx, req)
			counts.record(delegated, err)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	fmt.Fprintf(os.Stdout, "launched=%d ok=%d busy=%d err=%d no-resident=%d elapsed=%s\n",
		opts.n, counts.ok.Load(), counts.busy.Load(), counts.failed.Load(), counts.missing.Load(), elapsed)
	return nil
}
