package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/cashflowly/mpesa-listener/internal/config"
)

const validConfig = `
[capability]
oracle = 'static'
granted = true

[webhook]
enabled = true
addr = '127.0.0.1:0'
secret = 'test-secret'

[probe]
enabled = true
schedule = '@every 1h'
`

func createTestHome(t *testing.T) string {
	t.Helper()
	homeDir := filepath.Join(t.TempDir(), ".mpesa")
	t.Setenv(config.HomeEnv, homeDir)
	return homeDir
}

func writeConfig(t *testing.T, homeDir, body string) {
	t.Helper()
	if err := os.MkdirAll(homeDir, 0o700); err != nil {
		t.Fatalf("mkdir home dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(homeDir, "config.toml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeValidConfig(t *testing.T, homeDir string) {
	t.Helper()
	writeConfig(t, homeDir, validConfig)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cmdResult struct {
	out *lockedBuffer
	err *lockedBuffer
}

// executeRoot runs the root command with args and captures stdout and stderr.
func executeRoot(t *testing.T, ctx context.Context, stdin string, args ...string) (cmdResult, error) {
	t.Helper()
	res := cmdResult{out: &lockedBuffer{}, err: &lockedBuffer{}}
	cmd := NewRootCmd()
	cmd.SetOut(res.out)
	cmd.SetErr(res.err)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	if ctx == nil {
		ctx = context.Background()
	}
	return res, cmd.ExecuteContext(ctx)
}

func findCommand(t *testing.T, root *cobra.Command, path ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := root.Find(path)
	if err != nil {
		t.Fatalf("find %v: %v", path, err)
	}
	if cmd == nil || cmd.Name() != path[len(path)-1] {
		t.Fatalf("command %v not registered", path)
	}
	return cmd
}
