package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerRendersCountsAndBar(t *testing.T) {
	var buf bytes.Buffer
	tracker := New(&buf, "Building BGEN index")

	for i := uint32(1); i <= 10; i++ {
		tracker.Update(i, 10)
	}
	tracker.Done()

	out := buf.String()
	require.Contains(t, out, "Building BGEN index")
	require.Contains(t, out, "10/10")
	require.Contains(t, out, "100.0%")
	require.True(t, strings.HasSuffix(out, ")\n"))
}

func TestTrackerWithoutTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := New(&buf, "Scanning")
	tracker.Update(5, 0)
	tracker.Done()

	require.Contains(t, buf.String(), "Scanning: 5")
}

func TestBar(t *testing.T) {
	require.Equal(t, "[>                   ]", bar(0))
	require.Equal(t, "[==========>         ]", bar(50))
	require.Equal(t, "[====================]", bar(100))
}
