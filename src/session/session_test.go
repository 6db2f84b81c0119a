package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-text/src/history"
	"omni-text/src/llm"
	"omni-text/src/selection"
	"omni-text/src/settings"
	"omni-text/src/status"
)

type fakeSelection struct {
	captured   selection.Result
	captureErr error
	replaceErr error
	replaced   []string
}

func (f *fakeSelection) Capture(ctx context.Context) (selection.Result, error) {
	return f.captured, f.captureErr
}

func (f *fakeSelection) Replace(ctx context.Context, text string) error {
	f.replaced = append(f.replaced, text)
	return f.replaceErr
}

type fakeTransformer struct {
	reply string
	err   error
	req   llm.Request
}

func (f *fakeTransformer) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.req = req
	return llm.Response{Text: f.reply, TokensUsed: 42}, f.err
}

func (f *fakeTransformer) Model() string { return "test-model" }

type fakeRecorder struct {
	entries []history.Entry
}

func (f *fakeRecorder) Add(ctx context.Context, e history.Entry) (history.Entry, error) {
	f.entries = append(f.entries, e)
	return e, nil
}

type statusLog struct {
	mu     sync.Mutex
	states []status.State
}

func (s *statusLog) Notify(st status.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

type recordingTarget struct {
	ok   []Result
	errs []error
}

func (r *recordingTarget) OnSuccess(res Result) error {
	r.ok = append(r.ok, res)
	return nil
}

func (r *recordingTarget) OnFailure(err error) error {
	r.errs = append(r.errs, err)
	return nil
}

func proofread() settings.Action {
	return settings.Default().Actions[0]
}

func TestExecuteReplacesAndRecords(t *testing.T) {
	sel := &fakeSelection{captured: selection.Result{Text: "teh cat", Source: selection.SourceClipboardSimulation}}
	tr := &fakeTransformer{reply: "```\nthe cat\n```"}
	rec := &fakeRecorder{}
	sink := &statusLog{}
	target := &recordingTarget{}

	res, err := Execute(context.Background(), Options{
		Action: proofread(), Selection: sel, Transform: tr, History: rec,
		ProviderName: "Default", Status: sink, Target: target,
	})
	require.NoError(t, err)
	assert.Equal(t, "the cat", res.Text)
	assert.Equal(t, []string{"the cat"}, sel.replaced)
	assert.Equal(t, "teh cat", tr.req.UserPrompt)
	assert.Contains(t, tr.req.SystemPrompt, "Output only the corrected text")
	assert.Equal(t, []status.State{status.Processing, status.Ready}, sink.states)
	require.Len(t, target.ok, 1)

	require.Len(t, rec.entries, 1)
	e := rec.entries[0]
	assert.Equal(t, "Proofread", e.ActionName)
	assert.Equal(t, "teh cat", e.OriginalText)
	assert.Equal(t, "the cat", e.ResultText)
	assert.Equal(t, "test-model", e.Model)
	assert.EqualValues(t, 42, e.TokensUsed)
}

func TestExecutePrivacyModeSkipsHistory(t *testing.T) {
	sel := &fakeSelection{captured: selection.Result{Text: "teh cat"}}
	rec := &fakeRecorder{}

	_, err := Execute(context.Background(), Options{
		Action: proofread(), Selection: sel, Transform: &fakeTransformer{reply: "the cat"},
		History: rec, PrivacyMode: true,
	})
	require.NoError(t, err)
	assert.Empty(t, rec.entries)
}

func TestExecuteNoChange(t *testing.T) {
	sel := &fakeSelection{captured: selection.Result{Text: "Fine as is."}}
	sink := &statusLog{}

	_, err := Execute(context.Background(), Options{
		Action: proofread(), Selection: sel, Transform: &fakeTransformer{reply: `"Fine as is."`}, Status: sink,
	})
	require.ErrorIs(t, err, ErrNoChange)
	assert.Empty(t, sel.replaced)
	assert.Equal(t, []status.State{status.Processing, status.Ready}, sink.states)
	assert.Equal(t, "No changes needed", Message(err))
}

func TestExecuteCaptureFailure(t *testing.T) {
	sel := &fakeSelection{captureErr: selection.ErrSecureField}
	tr := &fakeTransformer{reply: "x"}
	sink := &statusLog{}
	target := &recordingTarget{}

	_, err := Execute(context.Background(), Options{
		Action: proofread(), Selection: sel, Transform: tr, Status: sink, Target: target,
	})
	require.ErrorIs(t, err, selection.ErrSecureField)
	assert.Empty(t, tr.req.UserPrompt)
	assert.Equal(t, []status.State{status.Processing, status.Error}, sink.states)
	require.Len(t, target.errs, 1)
	assert.Equal(t, "Cannot read from secure/password fields", Message(target.errs[0]))
}

func TestExecuteTransformFailure(t *testing.T) {
	sel := &fakeSelection{captured: selection.Result{Text: "teh cat"}}
	tr := &fakeTransformer{err: &llm.StatusError{Code: http.StatusUnauthorized}}

	_, err := Execute(context.Background(), Options{Action: proofread(), Selection: sel, Transform: tr})
	require.Error(t, err)
	assert.Empty(t, sel.replaced)
	assert.Equal(t, "Invalid API key. Check your API key in settings.", Message(err))
}

func TestExecuteReplaceFailureNotRecorded(t *testing.T) {
	sel := &fakeSelection{captured: selection.Result{Text: "teh cat"}, replaceErr: selection.ErrInjection}
	rec := &fakeRecorder{}

	_, err := Execute(context.Background(), Options{
		Action: proofread(), Selection: sel, Transform: &fakeTransformer{reply: "the cat"}, History: rec,
	})
	require.ErrorIs(t, err, selection.ErrInjection)
	assert.Empty(t, rec.entries)
}

func TestExecuteRequiresDependencies(t *testing.T) {
	_, err := Execute(context.Background(), Options{Transform: &fakeTransformer{}})
	assert.Error(t, err)
	_, err = Execute(context.Background(), Options{Selection: &fakeSelection{}})
	assert.Error(t, err)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Timed out", Message(context.DeadlineExceeded))
	assert.Equal(t, "No text selected", Message(selection.ErrNoSelection))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
