package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevels(t *testing.T) {
	var buf bytes.Buffer

	dev := SetupWithWriter("dev", &buf)
	assert.Equal(t, zerolog.DebugLevel, dev.GetLevel())

	prod := SetupWithWriter("prod", &buf)
	assert.Equal(t, zerolog.InfoLevel, prod.GetLevel())
}

func TestProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("prod", &buf)

	logger.Info().Str("doctor_id", "d1").Msg("doctor registered")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "doctor registered", line["message"])
	assert.Equal(t, "d1", line["doctor_id"])
}
