package logger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registration.log")

	zl := New("debug", "json", path)
	log := NewZapAdapter(zl).WithFields(map[string]interface{}{"component": "guard"})
	log.WithError(errors.New("lock held")).Warn("duplicate submission ignored", map[string]interface{}{
		"ticketId": "T-100",
	})
	_ = zl.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "duplicate submission ignored", entry["msg"])
	assert.Equal(t, "guard", entry["component"])
	assert.Equal(t, "T-100", entry["ticketId"])
	assert.Equal(t, "lock held", entry["error"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registration.log")

	zl := New("info", "json", path)
	NewZapAdapter(zl).Debug("gate dwell elapsed", nil)
	_ = zl.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.WithFields(nil).WithError(errors.New("x")).Error("ignored", nil)
	})
}
