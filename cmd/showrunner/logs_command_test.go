package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogsTailLastLines(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := appendLine(env.logPath, "first entry"); err != nil {
		t.Fatalf("append line: %v", err)
	}
	if err := appendLine(env.logPath, "second entry"); err != nil {
		t.Fatalf("append line: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--lines", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "second entry")
	if strings.Contains(out, "first entry") {
		t.Fatalf("expected only the last line, got %q", out)
	}
}

func TestLogsEmptyFile(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"logs"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")
}

func TestLogsFollow(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := appendLine(env.logPath, "boot line"); err != nil {
		t.Fatalf("append line: %v", err)
	}

	cmd := newRootCommand()
	buf := &syncBuffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--socket", env.socketPath, "--config", env.configPath, "logs", "--follow", "--lines", "1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	waitFor(t, 2*time.Second, func() bool {
		return strings.Contains(buf.String(), "boot line")
	})
	if err := appendLine(env.logPath, "follow line"); err != nil {
		t.Fatalf("append line: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		return strings.Contains(buf.String(), "follow line")
	})

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("logs --follow: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("logs --follow did not stop after cancel")
	}
}
