package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Verbosity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		verbosity int
		wantDebug bool
	}{
		{name: "default hides V(1)", verbosity: 0, wantDebug: false},
		{name: "-v shows V(1)", verbosity: 1, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			log := New(Options{Verbosity: tt.verbosity, Output: &buf})

			log.Info("visible", "app", "web")
			log.V(1).Info("debug line")

			out := buf.String()
			assert.Contains(t, out, "visible")
			assert.Contains(t, out, `"app": "web"`)
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug line"))
		})
	}
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(Options{Format: FormatJSON, Output: &buf})

	log.Info("hello", "resource", "vpc-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "vpc-1", rec["resource"])
}
