package buildinfo

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	for _, field := range []string{
		"version", "revision", "buildDate",
		"goVersion", "compiler", "os", "arch", "raceDetector",
	} {
		assert.Contains(t, decoded, field)
	}
	assert.Equal(t, runtime.Version(), decoded["goVersion"])
	assert.Equal(t, runtime.GOOS, decoded["os"])
}

func TestPrintListsVersionFirst(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[0], "Version:"))
	assert.True(t, strings.HasPrefix(lines[1], "Revision:"))
	assert.Contains(t, buf.String(), runtime.Version())
}
