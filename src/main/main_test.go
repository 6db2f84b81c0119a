package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-text/src/singleinstance"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	cases := map[string]struct {
		in, want []string
	}{
		"single dash long flags": {
			in:   []string{"omni-text", "-run-once", "default-proofread", "-data-dir", "/tmp/ot"},
			want: []string{"omni-text", "--run-once", "default-proofread", "--data-dir", "/tmp/ot"},
		},
		"equals form": {
			in:   []string{"omni-text", "-run-once=default-rewrite", "-verbose=true"},
			want: []string{"omni-text", "--run-once=default-rewrite", "--verbose=true"},
		},
		"short and unknown flags untouched": {
			in:   []string{"omni-text", "-v", "--other", "-x"},
			want: []string{"omni-text", "-v", "--other", "-x"},
		},
		"program name only": {
			in:   []string{"omni-text"},
			want: []string{"omni-text"},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeLegacyArgs(tc.in))
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--run-once", "default-proofread", "--data-dir", "/tmp/ot", "-v"}))
	assert.Equal(t, mainOptions{runOnce: "default-proofread", dataDir: "/tmp/ot", verbose: true}, *opts)
}

type fakeClient struct {
	delegated bool
	err       error
	called    bool
	req       singleinstance.Request
}

func (f *fakeClient) Delegate(ctx context.Context, req singleinstance.Request) (bool, string, error) {
	f.called = true
	f.req = req
	return f.delegated, "", f.err
}

func TestHandleRunOnceWithDelegation(t *testing.T) {
	fallbackErr := errors.New("standalone failed")
	cases := []struct {
		name         string
		client       *fakeClient
		wantFallback bool
		wantErr      string
	}{
		{name: "resident runs the action", client: &fakeClient{delegated: true}},
		{name: "no resident falls back", client: &fakeClient{}, wantFallback: true, wantErr: fallbackErr.Error()},
		{name: "resident error is not retried", client: &fakeClient{delegated: true, err: errors.New("Busy, please retry")}, wantErr: "Busy, please retry"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fallbackCalled := false
			err := handleRunOnceWithDelegation("default-proofread", tc.client, func() error {
				fallbackCalled = true
				return fallbackErr
			})

			require.True(t, tc.client.called)
			assert.Equal(t, singleinstance.Request{Kind: singleinstance.KindAction, Name: "default-proofread"}, tc.client.req)
			assert.Equal(t, tc.wantFallback, fallbackCalled)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tc.wantErr)
			}
		})
	}
}
