//go:build !windows

package runnable

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magdyamr542/gindev/config"
)

func TestRunExitCode(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, NewCmd(context.Background(), config.CommandWithDir{Command: "true", BaseDir: dir}).Run())
	assert.Error(t, NewCmd(context.Background(), config.CommandWithDir{Command: "false", BaseDir: dir}).Run())
}

func TestTerminateStopsGroup(t *testing.T) {
	r := NewCmd(context.Background(), config.CommandWithDir{Command: "sleep 30", BaseDir: t.TempDir()})
	require.NoError(t, r.Start())
	require.NotZero(t, r.Pid())

	done := make(chan error, 1)
	go func() { done <- r.Wait() }()

	require.NoError(t, r.Terminate())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		_ = r.Kill()
		t.Fatal("process did not exit after Terminate")
	}
}

func TestContextCancelKills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewCmd(ctx, config.CommandWithDir{Command: "sleep 30", BaseDir: t.TempDir()})
	require.NoError(t, r.Start())

	done := make(chan error, 1)
	go func() { done <- r.Wait() }()
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		_ = r.Kill()
		t.Fatal("process did not exit after cancel")
	}
}
