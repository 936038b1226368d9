package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/gridweaver/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	c := &CommandContext{Cfg: testConfig(), Logger: testutil.NewTestLogger(t)}

	tests := []struct {
		name      string
		content   string
		renderers []string
		failed    bool
		columns   int
		issues    []checkIssue
	}{
		{
			name:    "valid",
			content: usersYAML,
			columns: 3,
		},
		{
			name:    "malformed json",
			content: `{"http": `,
			failed:  true,
		},
		{
			name:    "missing fields",
			content: "defaultSort:\n  colId: name\n  sort: asc\n",
			failed:  true,
			issues: []checkIssue{
				{severityError, "http: is required"},
				{severityError, "columnDefs: is required"},
			},
		},
		{
			name: "formatter does not compile",
			content: `{"http":{"url":"/x"},"columnDefs":[
				{"field":"a","formatter":["$cellValue | shout"]}]}`,
			failed:  true,
			columns: 1,
			issues: []checkIssue{
				{severityError, `columnDefs[0] (a): compile "$cellValue | shout": unknown filter "shout"`},
			},
		},
		{
			name: "duplicate keys warn",
			content: `{"http":{"url":"/x"},"columnDefs":[
				{"field":"a"},{"field":"a"}]}`,
			columns: 2,
			issues:  []checkIssue{{severityWarning, `duplicate column key "a"`}},
		},
		{
			name: "unknown renderer warns",
			content: `{"http":{"url":"/x"},"columnDefs":[
				{"field":"a","renderer":"badge"},{"field":"b","renderer":"link"}]}`,
			renderers: []string{"link"},
			columns:   2,
			issues:    []checkIssue{{severityWarning, `columnDefs[0] (a): column "a": renderer "badge" not found in registry`}},
		},
		{
			name: "renderers unchecked without a list",
			content: `{"http":{"url":"/x"},"columnDefs":[
				{"field":"a","renderer":"badge"}]}`,
			columns: 1,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, fmt.Sprintf("def%d.yaml", i), tt.content)

			res := checkFile(path, tt.renderers, c, nil)
			assert.Equal(t, tt.failed, res.failed())
			assert.Equal(t, tt.columns, res.Columns)
			if tt.issues != nil {
				assert.Equal(t, tt.issues, res.Issues)
			}
			if !tt.failed && tt.issues == nil {
				assert.Empty(t, res.Issues)
			}
		})
	}
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "users.yaml", usersYAML)
	bad := writeFile(t, dir, "broken.json", `{"http":{"url":"/x"},"columnDefs":[{"field":"a","formatter":["a +"]}]}`)

	tests := []struct {
		name       string
		args       []string
		wantErr    string
		wantOutput []string
	}{
		{
			name:       "all pass",
			args:       []string{good},
			wantOutput: []string{"users.yaml", "ok"},
		},
		{
			name:       "one fails",
			args:       []string{good, bad},
			wantErr:    "1 of 2 definitions failed checks",
			wantOutput: []string{"broken.json", "FAIL", "error: columnDefs[0] (a)"},
		},
		{
			name:    "no files",
			args:    []string{},
			wantErr: "requires at least 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, NewCheckCommand(), testConfig(), tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			for _, want := range tt.wantOutput {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestWatchFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "users.yaml", usersYAML)
	writeFile(t, dir, "other.yaml", usersYAML)
	c := &CommandContext{Cfg: testConfig(), Logger: testutil.NewTestLogger(t)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFiles(ctx, []string{path}, c, func() { calls.Add(1) })
	}()

	// Give the watcher time to register, then write a burst.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(usersYAML), 0o600))
	}

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(2 * watchDebounce)
	assert.Equal(t, int32(1), calls.Load(), "burst is debounced into one call")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
