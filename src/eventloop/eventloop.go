// Package eventloop is the resident's single coordinator. Hotkey triggers and
// delegated CLI requests are posted into one loop, and at most one of them runs
// at a time on the worker pool.
package eventloop

import (
	"context"
	"errors"
	"log"

	"omni-text/src/session"
	"omni-text/src/singleinstance"
	"omni-text/src/worker"
)

const busyMessage = "Busy, please retry"

// ActionFunc runs the action with the given id and reports to target.
type ActionFunc func(ctx context.Context, actionID string, target session.ResultTarget) error

// Dispatcher is satisfied by *commands.Handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args []string) (string, error)
}

type Options struct {
	Server   singleinstance.Server
	Pool     *worker.Pool
	Action   ActionFunc
	Commands Dispatcher
	// HotkeyTarget receives the outcome of hotkey-triggered actions.
	// Defaults to session.LogTarget.
	HotkeyTarget session.ResultTarget
	// OnBusy is called when a hotkey trigger is dropped because work is running.
	OnBusy func(actionID string)
	// Message converts command errors into reply text. Defaults to err.Error().
	Message func(err error) string
}

// Loop is the single-threaded coordinator for hotkey and delegated flows.
type Loop struct {
	srv      singleinstance.Server
	pool     *worker.Pool
	action   ActionFunc
	commands Dispatcher
	target   session.ResultTarget
	onBusy   func(string)
	message  func(error) string
	busy     bool
	done     chan struct{}
	triggers chan string
}

func New(opts Options) *Loop {
	l := &Loop{
		srv:      opts.Server,
		pool:     opts.Pool,
		action:   opts.Action,
		commands: opts.Commands,
		target:   opts.HotkeyTarget,
		onBusy:   opts.OnBusy,
		message:  opts.Message,
		done:     make(chan struct{}, 1),
		triggers: make(chan string, 4),
	}
	if l.pool == nil {
		l.pool = worker.New(1)
	}
	if l.target == nil {
		l.target = session.LogTarget{}
	}
	if l.action == nil {
		l.action = func(_ context.Context, _ string, target session.ResultTarget) error {
			_ = target.OnFailure(ErrNoAction)
			return ErrNoAction
		}
	}
	if l.message == nil {
		l.message = func(err error) string { return err.Error() }
	}
	return l
}

// Trigger posts a hotkey action into the loop without blocking. Triggers
// beyond the small buffer are dropped.
func (l *Loop) Trigger(actionID string) {
	select {
	case l.triggers <- actionID:
	default:
		log.Printf("eventloop: dropping trigger %s, queue full", actionID)
	}
}

// Run starts the server and processes requests until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.Close()

	var reqCh chan singleinstance.Conn
	if l.srv != nil {
		if err := l.srv.Start(ctx); err != nil {
			return err
		}
		defer l.srv.Close()
		if p := l.srv.Port(); p > 0 {
			log.Printf("Resident listening on 127.0.0.1:%d", p)
		}

		// Accept loop in background to avoid blocking result handling
		reqCh = make(chan singleinstance.Conn, 4)
		go func() {
			for {
				conn, err := l.srv.Next(ctx)
				if err != nil {
					close(reqCh)
					return
				}
				reqCh <- conn
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-l.triggers:
			l.handleTrigger(ctx, id)
		case conn, ok := <-reqCh:
			if !ok {
				reqCh = nil
				continue
			}
			l.handleConn(ctx, conn)
		case <-l.done:
			l.busy = false
		}
	}
}

func (l *Loop) handleTrigger(ctx context.Context, id string) {
	log.Printf("handleTrigger: %s", id)
	if !l.start(ctx, "action "+id, func(jobCtx context.Context) {
		_ = l.action(jobCtx, id, l.target)
	}) {
		log.Printf("handleTrigger: busy, skipping %s", id)
		if l.onBusy != nil {
			l.onBusy(id)
		}
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	req := conn.Request()
	var task worker.Task
	switch req.Kind {
	case singleinstance.KindAction:
		task = func(jobCtx context.Context) {
			defer conn.Close()
			_ = l.action(jobCtx, req.Name, session.DelegatedTarget{Conn: conn})
		}
	case singleinstance.KindCommand:
		task = func(jobCtx context.Context) {
			defer conn.Close()
			l.runCommand(jobCtx, conn, req)
		}
	default:
		_ = conn.RespondError("unsupported request")
		_ = conn.Close()
		return
	}
	if !l.start(ctx, req.Kind+" "+req.Name, task) {
		_ = conn.RespondError(busyMessage)
		_ = conn.Close()
	}
}

func (l *Loop) runCommand(ctx context.Context, conn singleinstance.Conn, req singleinstance.Request) {
	if l.commands == nil {
		_ = conn.RespondError("commands not available")
		return
	}
	var args []string
	if req.Body != "" {
		args = []string{req.Body}
	}
	out, err := l.commands.Dispatch(ctx, req.Name, args)
	if err != nil {
		_ = conn.RespondError(l.message(err))
		return
	}
	_ = conn.RespondSuccess(out)
}

// start marks the loop busy and submits task. It returns false when busy.
func (l *Loop) start(ctx context.Context, name string, task worker.Task) bool {
	if l.busy {
		return false
	}
	l.busy = true
	submitted := l.pool.Submit(ctx, name, func(jobCtx context.Context) {
		defer func() { l.done <- struct{}{} }()
		task(jobCtx)
	})
	if !submitted {
		l.busy = false
	}
	return submitted
}

// ErrNoAction is returned by action funcs for an unknown or disabled id.
var ErrNoAction = errors.New("no such enabled action")
