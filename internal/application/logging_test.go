package application

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/taskplanner/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var fromCtx, base bytes.Buffer
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&fromCtx, nil)))

	serviceLogger(ctx, slog.New(slog.NewTextHandler(&base, nil)), "RecordService", "Create", "entity", "tasks").Info("done")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay unused")
	}
	for _, want := range []string{"service=RecordService", "operation=Create", "entity=tasks"} {
		if !strings.Contains(fromCtx.String(), want) {
			t.Fatalf("expected %q in %q", want, fromCtx.String())
		}
	}
}
