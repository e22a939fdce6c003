package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")
	log.Info().Msg("hidden")
	log.Warn().Str("debt", "Card").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"debt":"Card"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestNew(t *testing.T) {
	log := New(Config{Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())

	log = New(Config{Pretty: true})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
