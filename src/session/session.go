// Package session runs one rewrite action end to end: capture the selection,
// send it through the text service, normalize the reply and paste it back.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"omni-text/src/history"
	"omni-text/src/llm"
	"omni-text/src/selection"
	"omni-text/src/settings"
	"omni-text/src/singleinstance"
	"omni-text/src/status"
)

const DefaultDeadline = 60 * time.Second

// ErrNoChange means the service returned nothing usable or the input unchanged;
// the selection is left as it was.
var ErrNoChange = errors.New("no change to apply")

// Selection is satisfied by *selection.Service.
type Selection interface {
	Capture(ctx context.Context) (selection.Result, error)
	Replace(ctx context.Context, text string) error
}

// Transformer is satisfied by *llm.Client.
type Transformer interface {
	Complete(ctx context.Context, req llm.Request) (llm.Response, error)
	Model() string
}

// Recorder is satisfied by *history.Store.
type Recorder interface {
	Add(ctx context.Context, e history.Entry) (history.Entry, error)
}

// ResultTarget receives the outcome once the pipeline is finished.
type ResultTarget interface {
	OnSuccess(res Result) error
	OnFailure(err error) error
}

type Options struct {
	Action    settings.Action
	Selection Selection
	Transform Transformer
	// History is skipped when nil or when PrivacyMode is set.
	History      Recorder
	PrivacyMode  bool
	ProviderName string
	Status       status.Sink
	Target       ResultTarget
	Deadline     time.Duration
}

type Result struct {
	ActionID   string
	Original   string
	Text       string
	Source     selection.Source
	TokensUsed int
	Duration   time.Duration
}

// Execute runs the pipeline. Status goes to Processing at the start and ends
// at Ready on success, or Error on any failure other than ErrNoChange.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Selection == nil {
		return Result{}, errors.New("Selection is required")
	}
	if opts.Transform == nil {
		return Result{}, errors.New("Transform is required")
	}
	sink := opts.Status
	if sink == nil {
		sink = status.Nop{}
	}
	target := opts.Target
	if target == nil {
		target = LogTarget{}
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	sink.Notify(status.Processing)
	res, err := run(jobCtx, opts)
	switch {
	case errors.Is(err, ErrNoChange):
		sink.Notify(status.Ready)
		_ = target.OnFailure(err)
		return res, err
	case err != nil:
		log.Printf("session: action %s failed: %v", opts.Action.ID, err)
		sink.Notify(status.Error)
		_ = target.OnFailure(err)
		return res, err
	}

	if err := target.OnSuccess(res); err != nil {
		sink.Notify(status.Error)
		_ = target.OnFailure(err)
		return res, err
	}
	sink.Notify(status.Ready)
	return res, nil
}

func run(ctx context.Context, opts Options) (Result, error) {
	res := Result{ActionID: opts.Action.ID}
	start := time.Now()

	captured, err := opts.Selection.Capture(ctx)
	if err != nil {
		return res, err
	}
	res.Original = captured.Text
	res.Source = captured.Source
	log.Printf("session: captured %d chars via %s for %s", len([]rune(captured.Text)), captured.Source, opts.Action.ID)

	system, user := opts.Action.RenderPrompt(captured.Text)
	reply, err := opts.Transform.Complete(ctx, llm.Request{SystemPrompt: system, UserPrompt: user})
	if err != nil {
		return res, fmt.Errorf("transform: %w", err)
	}
	res.TokensUsed = reply.TokensUsed

	text, ok := llm.Normalize(reply.Text, captured.Text)
	if !ok {
		log.Printf("session: reply of %d chars gave no change for %s", len([]rune(reply.Text)), opts.Action.ID)
		return res, ErrNoChange
	}
	res.Text = text

	if err := opts.Selection.Replace(ctx, text); err != nil {
		return res, err
	}
	res.Duration = time.Since(start)

	record(ctx, opts, res)
	return res, nil
}

// record stores the finished action. A history failure is logged only; the
// text has already been replaced.
func record(ctx context.Context, opts Options, res Result) {
	if opts.History == nil || opts.PrivacyMode {
		return
	}
	entry := history.Entry{
		Timestamp:    time.Now(),
		ActionName:   opts.Action.Name,
		OriginalText: res.Original,
		ResultText:   res.Text,
		Provider:     opts.ProviderName,
		Model:        opts.Transform.Model(),
		DurationMS:   res.Duration.Milliseconds(),
		TokensUsed:   int64(res.TokensUsed),
	}
	if _, err := opts.History.Add(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("session: failed to record history: %v", err)
	}
}

// Message is the text shown to the user for a failed action.
func Message(err error) string {
	var statusErr *llm.StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoChange):
		return "No changes needed"
	case errors.As(err, &statusErr):
		return statusErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out"
	case selection.KindOf(err) != selection.KindUnknown:
		return selection.UserMessage(err)
	default:
		return err.Error()
	}
}

// LogTarget only logs; the replacement already happened in place.
type LogTarget struct{}

func (LogTarget) OnSuccess(res Result) error {
	log.Printf("session: %s replaced %d chars in %s", res.ActionID, len([]rune(res.Text)), res.Duration)
	return nil
}

func (LogTarget) OnFailure(err error) error {
	log.Printf("session: %s", Message(err))
	return nil
}

// DelegatedTarget answers a CLI client that asked the resident to run an action.
type DelegatedTarget struct {
	Conn singleinstance.Conn
}

func (t DelegatedTarget) OnSuccess(res Result) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	return t.Conn.RespondSuccess(res.Text)
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(Message(err))
}
