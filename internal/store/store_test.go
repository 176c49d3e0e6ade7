package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/metric"
	"codeberg.org/mutker/sysmon/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.UnixMilli(1700000000123)

func TestFormatRecord(t *testing.T) {
	tests := []struct {
		name string
		m    metric.Metric
		want string
	}{
		{"cpu", metric.Metric{Kind: metric.CPU, V1: 70, Timestamp: ts}, "1700000000123,CPU,70.00"},
		{"mem", metric.Metric{Kind: metric.MEM, V1: 42.5, Timestamp: ts}, "1700000000123,MEM,42.50"},
		{"cpu sentinel", metric.Metric{Kind: metric.CPU, V1: metric.Sentinel, Timestamp: ts}, "1700000000123,CPU,-1.00"},
		{"disk", metric.Metric{Kind: metric.DISK, V1: 128, V2: 4096, Timestamp: ts}, "1700000000123,DISK,128,4096"},
		{"net", metric.Metric{Kind: metric.NET, V1: 1500, V2: 0, Timestamp: ts}, "1700000000123,NET,1500,0"},
		{"net sentinel", metric.Metric{Kind: metric.NET, V1: -1, V2: -1, Timestamp: ts}, "1700000000123,NET,-1,-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.FormatRecord(tt.m))
		})
	}
}

func TestFormatAlert(t *testing.T) {
	assert.Equal(t, "1700000000123,ALERT,CPU_HIGH,70.00",
		store.FormatAlert(metric.Metric{Kind: metric.CPU, V1: 70, Timestamp: ts}))
	assert.Equal(t, "1700000000123,ALERT,MEM_HIGH,85.00",
		store.FormatAlert(metric.Metric{Kind: metric.MEM, V1: 85, Timestamp: ts}))
}

func TestLogAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "resource_log.txt")

	l, err := store.Open(path, true)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	require.NoError(t, l.Append("a,b", "c,d"))
	require.NoError(t, l.Append())

	// Visible before close: nothing is buffered in process
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\nc,d\n", string(data))

	require.NoError(t, l.Close())

	// Reopening appends
	l, err = store.Open(path, false)
	require.NoError(t, err)
	require.NoError(t, l.Append("e,f"))
	require.NoError(t, l.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\nc,d\ne,f\n", string(data))
}

func TestOpenErrors(t *testing.T) {
	_, err := store.Open("", false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, store.ErrInvalidPath))

	// A regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err = store.Open(filepath.Join(blocker, "log.txt"), false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, store.ErrOpen))
}
