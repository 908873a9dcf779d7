package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupLevels(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		var buf bytes.Buffer
		assert.Equal(t, want, Setup(&buf, in), in)
		assert.Equal(t, want, zerolog.GlobalLevel(), in)
	}
}

func TestComponentTag(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	Setup(&buf, "info")
	logger := Component("store")
	logger.Info().Msg("saved")
	log.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "component=store")
	assert.Contains(t, out, "saved")
	assert.NotContains(t, out, "hidden")
}

func TestHoldBuffersUntilRelease(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	Setup(&buf, "info")
	release := Hold()
	logger := Component("manager")
	logger.Info().Msg("connection removed")
	assert.Empty(t, buf.String())

	release()
	assert.Contains(t, buf.String(), "connection removed")
	log.Info().Msg("after")
	assert.Contains(t, buf.String(), "after")
}
