package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAttributesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", false)

	ctx := Ctx(context.Background(), slog.String("run_id", "abc"))
	ctx = Ctx(ctx, slog.Int64("feed_id", 7))
	log.InfoContext(ctx, "Task completed")

	out := buf.String()
	assert.Contains(t, out, "run_id=abc")
	assert.Contains(t, out, "feed_id=7")
}

func TestCtxDoesNotLeakBetweenBranches(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", false)

	parent := Ctx(context.Background(), slog.String("run_id", "abc"))
	_ = Ctx(parent, slog.Int64("feed_id", 1))
	log.InfoContext(parent, "summary")

	assert.Contains(t, buf.String(), `"run_id":"abc"`)
	assert.NotContains(t, buf.String(), "feed_id")
}

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "text", false).Debug("hidden")
	assert.Empty(t, buf.String())

	New(&buf, "text", true).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
