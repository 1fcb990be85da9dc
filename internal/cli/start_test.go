package cli

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestStartRunsUntilCancelled(t *testing.T) {
	homeDir := createTestHome(t)
	writeValidConfig(t, homeDir)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	if _, err := executeRoot(t, ctx, "", "start"); err != nil {
		t.Fatalf("execute start: %v", err)
	}
}

func TestRootDefaultsToStart(t *testing.T) {
	homeDir := createTestHome(t)
	writeValidConfig(t, homeDir)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	if _, err := executeRoot(t, ctx, ""); err != nil {
		t.Fatalf("execute root: %v", err)
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	homeDir := createTestHome(t)
	writeConfig(t, homeDir, "[capability]\noracle = 'bogus'\n")

	_, err := executeRoot(t, nil, "", "start")
	if err == nil || !strings.Contains(err.Error(), "capability") {
		t.Fatalf("expected capability validation error, got %v", err)
	}
}

func TestStartRequiresASource(t *testing.T) {
	homeDir := createTestHome(t)
	writeConfig(t, homeDir, "[webhook]\nenabled = false\n")

	_, err := executeRoot(t, nil, "", "start")
	if err == nil || !strings.Contains(err.Error(), "no sources enabled") {
		t.Fatalf("expected missing source error, got %v", err)
	}
}
