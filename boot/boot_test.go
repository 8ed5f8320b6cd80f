package boot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/kconfig"
)

func testConfig() kconfig.Config {
	cfg := kconfig.Default()
	cfg.PhysMemMB = 1
	cfg.TraceBuffer = 16
	return cfg
}

func TestBootMountsRootAndDev(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)

	_, _, ok := k.Mount.Lookup("/dev/null")
	assert.True(t, ok)
	_, _, ok = k.Mount.Lookup("/")
	assert.True(t, ok)
}

func TestBootCreatesInitProcess(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)

	assert.Greater(t, k.Root.Proc.PID, int64(0))
	assert.Equal(t, "/", k.Root.Proc.GetCwd())
}

func TestBootRejectsUnknownRootFS(t *testing.T) {
	cfg := testConfig()
	cfg.RootFS = "ext4"
	_, err := Boot(cfg)
	assert.Error(t, err)
}

func TestRunAdvancesClock(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)

	require.NoError(t, k.Run(context.Background(), 5))
	assert.Equal(t, int64(5), k.Procs.Clock())
}

func TestBootEmitsTraceEvent(t *testing.T) {
	k, err := Boot(testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, k.Trace.Len())
}
