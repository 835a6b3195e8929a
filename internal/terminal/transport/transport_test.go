package transport

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"pipe", KindPipe, false},
		{"PTY", KindPTY, false},
		{" pty ", KindPTY, false},
		{"", KindPTY, false},
		{"serial", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(Kind("serial"), DefaultSize)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCreation))

	var ce *CreationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ReasonUnsupported, ce.Reason)
}

func TestCreationErrorClassifiesResources(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("errno classification differs on Windows")
	}
	err := creationError(KindPipe, &os.SyscallError{Syscall: "pipe2", Err: syscall.EMFILE})
	assert.Equal(t, ReasonResources, err.Reason)
	assert.True(t, errors.Is(err, ErrCreation))
	assert.True(t, errors.Is(err, syscall.EMFILE))
	assert.Contains(t, err.Error(), "out_of_resources")
}

func TestIsClosed(t *testing.T) {
	assert.True(t, IsClosed(io.EOF))
	assert.True(t, IsClosed(os.ErrClosed))
	assert.False(t, IsClosed(errors.New("boom")))
	assert.False(t, IsClosed(nil))
}

func shellCommand(script string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/c", script)
	}
	return exec.Command("sh", "-c", script)
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	var out bytes.Buffer
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			if !IsClosed(err) {
				t.Fatalf("unexpected read error: %v", err)
			}
			return out.String()
		}
	}
}

func TestPipeMergesStdoutAndStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	tr, err := New(KindPipe, DefaultSize)
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	assert.Equal(t, KindPipe, tr.Kind())

	cmd := shellCommand("echo out; echo err 1>&2")
	require.NoError(t, tr.Start(cmd))

	got := readAll(t, tr)
	require.NoError(t, cmd.Wait())

	assert.Contains(t, got, "out\n")
	assert.Contains(t, got, "err\n")
	assert.Equal(t, int64(len(got)), tr.Stats().BytesRead)
}

func TestPipeForwardsInputUntouched(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	tr, err := New(KindPipe, DefaultSize)
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	cmd := shellCommand("cat")
	require.NoError(t, tr.Start(cmd))

	payload := "héllo\x1b[0m\n"
	n, err := tr.Write([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, 64)
	var got strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for got.Len() < len(payload) && time.Now().Before(deadline) {
		n, err := tr.Read(buf)
		got.Write(buf[:n])
		require.NoError(t, err)
	}
	assert.Equal(t, payload, got.String())

	require.NoError(t, tr.Close())
	_ = cmd.Wait()
}

func TestPipeCloseIsIdempotent(t *testing.T) {
	tr, err := New(KindPipe, DefaultSize)
	require.NoError(t, err)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err = tr.Write([]byte("x"))
	assert.Error(t, err)
}

func TestPTYEchoesThroughTerminal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("ConPTY is covered by manual testing")
	}
	if os.Getenv("CI") != "" {
		t.Skip("Skipping PTY test in CI environment")
	}

	tr, err := New(KindPTY, Size{Cols: 100, Rows: 30})
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	assert.Equal(t, KindPTY, tr.Kind())

	cmd := shellCommand("stty size; echo ready")
	require.NoError(t, tr.Start(cmd))

	got := readAll(t, tr)
	_ = cmd.Wait()

	assert.Contains(t, got, "30 100")
	assert.Contains(t, got, "ready")
	assert.NoError(t, tr.Resize(120, 40))
}
