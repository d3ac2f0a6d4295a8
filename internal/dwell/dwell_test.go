package dwell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAwaitRunsToCompletion(t *testing.T) {
	start := time.Now()
	if err := Await(context.Background(), testLogger(), 50*time.Millisecond, 10*time.Millisecond); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Await returned after %v, want at least 50ms", elapsed)
	}
}

func TestAwaitHeartbeatReportsElapsed(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if err := Await(context.Background(), log, 30*time.Millisecond, 10*time.Millisecond); err != nil {
		t.Fatalf("Await: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "elapsed=") || !strings.Contains(out, "total=") {
		t.Errorf("heartbeat = %q, want elapsed and total fields", out)
	}
}

func TestAwaitZeroIsImmediate(t *testing.T) {
	if err := Await(context.Background(), testLogger(), 0, time.Second); err != nil {
		t.Fatalf("Await: %v", err)
	}
}

func TestAwaitHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Await(ctx, testLogger(), time.Minute, 5*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Await = %v, want context.Canceled", err)
	}
}

func TestWithCompanionJoinsBothSides(t *testing.T) {
	var companionDone atomic.Bool
	err := WithCompanion(context.Background(), testLogger(), 30*time.Millisecond, 10*time.Millisecond,
		func(ctx context.Context) {
			<-ctx.Done()
			companionDone.Store(true)
		})
	if err != nil {
		t.Fatalf("WithCompanion: %v", err)
	}
	if !companionDone.Load() {
		t.Error("companion was not joined before return")
	}
}

func TestWithCompanionEarlyExitDoesNotShortenDwell(t *testing.T) {
	start := time.Now()
	err := WithCompanion(context.Background(), testLogger(), 40*time.Millisecond, 10*time.Millisecond,
		func(context.Context) {})
	if err != nil {
		t.Fatalf("WithCompanion: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("dwell cut short at %v", elapsed)
	}
}
