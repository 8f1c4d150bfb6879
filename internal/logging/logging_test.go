package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	l := setup(&buf, "counterd", "warn", false)
	l.Info().Msg("hidden")
	l.Warn().Str("bill_number", "BILL-1").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "counterd", line["service"])
	assert.Equal(t, "BILL-1", line["bill_number"])
	assert.Equal(t, "warn", line["level"])
}

func TestSetupUnknownLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	setup(&buf, "stored", "loud", true)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
