package command

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerCapture(t *testing.T) {
	r := NewExecRunner(slog.Default())
	out, err := r.Run(context.Background(), Spec{Name: "sh", Args: []string{"-c", "echo $FOO"}, Env: []string{"FOO=bar"}, Capture: true})
	require.NoError(t, err)
	assert.Equal(t, "bar\n", string(out))
}

func TestExecRunnerExitError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := &ExecRunner{Stdout: &stdout, Stderr: &stderr, Logger: slog.Default()}
	_, err := r.Run(context.Background(), Spec{Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "oops", exitErr.Stderr)
	assert.Contains(t, stderr.String(), "oops")
}

func TestTailBufferKeepsEnd(t *testing.T) {
	var buf bytes.Buffer
	tb := &tailBuffer{buf: &buf, limit: 4}
	_, _ = tb.Write([]byte("abcdef"))
	_, _ = tb.Write([]byte("gh"))
	assert.Equal(t, "efgh", buf.String())
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder().
		On("docker images", "", nil).
		On("docker images -q base", "sha256:1\n", nil)

	out, err := rec.Run(context.Background(), Spec{Name: "docker", Args: []string{"images", "-q", "base"}})
	require.NoError(t, err)
	assert.Equal(t, "sha256:1\n", string(out))

	out, err = rec.Run(context.Background(), Spec{Name: "docker", Args: []string{"images", "-q", "other"}})
	require.NoError(t, err)
	assert.Empty(t, out)

	assert.Equal(t, []string{"docker images -q base", "docker images -q other"}, rec.Lines())
}
