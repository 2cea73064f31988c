package cli_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/bpmnflow/internal/cli"
)

func TestRun(t *testing.T) {
	out, err := execute(t, "run", "--instance", "pi-1", "testdata/parallel.json")
	require.NoError(t, err)

	assert.Contains(t, out, "instance pi-1 started")
	assert.Regexp(t, `split\s+create\s+2 threads`, out)
	assert.Regexp(t, `join\s+waiting\s+1 arrived`, out)
	assert.Regexp(t, `join\s+join\s+\S+`, out)
	assert.Regexp(t, `done\s+no_token`, out)
	assert.Contains(t, out, "instance pi-1 completed in 2 steps")
}

func TestRunHistory(t *testing.T) {
	out, err := execute(t,
		"run", "--instance", "pi-1", "--history", "testdata/parallel.json",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "history pi-1 (completed)")
	assert.Regexp(t, `instance_started\s`, out)
	assert.Regexp(t, `join_fired\s+join`, out)
	assert.Regexp(t, `instance_completed\s`, out)
}

func TestRunGeneratesInstanceID(t *testing.T) {
	out, err := execute(t, "run", "testdata/parallel.json")
	require.NoError(t, err)
	assert.Contains(t, out, "instance parallel-")
}

func TestRunStepLimit(t *testing.T) {
	_, err := execute(t,
		"run", "--max-steps", "1", "testdata/parallel.json",
	)
	assert.ErrorIs(t, err, cli.ErrStepLimit)
}

func TestRunUnreachableRedis(t *testing.T) {
	_, err := execute(t,
		"run", "--embedded=false", "--redis", "127.0.0.1:1",
		"testdata/parallel.json",
	)
	assert.Error(t, err)
}

func TestArchiveAndInspect(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()
	bucket := "file://" + t.TempDir()

	_, err = execute(t,
		"run", "--embedded=false", "--redis", server.Addr(), "--keep",
		"--instance", "pi-1", "testdata/parallel.json",
	)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	out, err := execute(t,
		"archive", "--redis", server.Addr(), "--bucket", bucket,
		"--max-age", "1ms", "--once",
	)
	require.NoError(t, err)
	assert.Equal(t,
		"archived 1 instances\narchived 1 journal streams",
		strings.TrimSpace(out),
	)

	out, err = execute(t, "inspect", "parallel", "pi-1", "--bucket", bucket)
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "pi-1"`)
	assert.Contains(t, out, `"status": "completed"`)

	out, err = execute(t,
		"archive", "--redis", server.Addr(), "--bucket", bucket,
		"--max-age", "1ms", "--once",
	)
	require.NoError(t, err)
	assert.Equal(t,
		"archived 0 instances\narchived 0 journal streams",
		strings.TrimSpace(out),
	)

	journaled := filepath.Join(
		strings.TrimPrefix(bucket, "file://"),
		"instances", "_journal", "instance", "pi-1.json",
	)
	_, err = os.Stat(journaled)
	assert.NoError(t, err)
}

func TestArchiveRequiresBucket(t *testing.T) {
	t.Setenv("ARCHIVE_BUCKET_URL", "")
	_, err := execute(t, "archive", "--once")
	assert.ErrorIs(t, err, cli.ErrBucketURLRequired)

	_, err = execute(t, "inspect", "parallel", "pi-1")
	assert.ErrorIs(t, err, cli.ErrBucketURLRequired)
}
