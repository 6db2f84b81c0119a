package inject

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	log    []string
	failOn string
}

func (r *recordingBackend) Toggle(key string, down bool) error {
	entry := fmt.Sprintf("%s:%s", key, direction(down))
	if entry == r.failOn {
		return errors.New("event rejected")
	}
	r.log = append(r.log, entry)
	return nil
}

func newTestInjector(b Backend, sleeps *[]time.Duration) *Injector {
	inj := New(b, Options{PrimaryModifier: "cmd"})
	inj.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return ctx.Err()
	}
	return inj
}

func TestCopySequenceAndTiming(t *testing.T) {
	backend := &recordingBackend{}
	var sleeps []time.Duration
	inj := newTestInjector(backend, &sleeps)

	require.NoError(t, inj.Copy(context.Background()))

	assert.Equal(t, []string{"cmd:press", "c:press", "c:release", "cmd:release"}, backend.log)
	assert.Equal(t, []time.Duration{
		DefaultInterEventDelay, DefaultInterEventDelay, DefaultInterEventDelay, DefaultSettleDelay,
	}, sleeps)
}

func TestPasteAndSelectAll(t *testing.T) {
	backend := &recordingBackend{}
	var sleeps []time.Duration
	inj := newTestInjector(backend, &sleeps)

	require.NoError(t, inj.Paste(context.Background()))
	require.NoError(t, inj.SelectAll(context.Background()))

	assert.Equal(t, []string{
		"cmd:press", "v:press", "v:release", "cmd:release",
		"cmd:press", "a:press", "a:release", "cmd:release",
	}, backend.log)
	assert.Equal(t, selectAllSettleDelay, sleeps[len(sleeps)-1])
}

func TestMultipleModifiersReleaseInReverse(t *testing.T) {
	backend := &recordingBackend{}
	var sleeps []time.Duration
	inj := newTestInjector(backend, &sleeps)

	err := inj.SendChord(context.Background(), Chord{Modifiers: []string{"ctrl", "shift"}, Key: "z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ctrl:press", "shift:press", "z:press", "z:release", "shift:release", "ctrl:release"}, backend.log)
}

func TestFailureReleasesHeldKeys(t *testing.T) {
	backend := &recordingBackend{failOn: "c:press"}
	var sleeps []time.Duration
	inj := newTestInjector(backend, &sleeps)

	err := inj.Copy(context.Background())
	require.ErrorIs(t, err, ErrInjection)
	assert.Equal(t, []string{"cmd:press", "cmd:release"}, backend.log)
}

func TestCancelledContextStopsChord(t *testing.T) {
	backend := &recordingBackend{}
	var sleeps []time.Duration
	inj := newTestInjector(backend, &sleeps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := inj.Paste(ctx)
	require.ErrorIs(t, err, ErrInjection)
	// the modifier pressed before the first delay is released again
	assert.Equal(t, []string{"cmd:press", "cmd:release"}, backend.log)
}

func TestEmptyKeyRejected(t *testing.T) {
	inj := New(&recordingBackend{}, Options{})
	err := inj.SendChord(context.Background(), Chord{})
	assert.ErrorIs(t, err, ErrInjection)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
