package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLogLevel tests the accepted level names
func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug": logger.DEBUG, "INFO": logger.INFO, "warn": logger.WARNING,
		"warning": logger.WARNING, "error": logger.ERROR,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}

// TestLoggerFormat tests the line format and level filter of the custom logger
func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	old := output
	output = &buf
	defer func() { output = old }()

	l := CreateLogger("store")
	l.SetLevel(logger.WARNING)
	l.Infof("hidden")
	l.Warningf("visible %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  | store           | visible 1")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

// TestConfig tests validation and printing of the configuration
func TestConfig(t *testing.T) {
	c := &Config{Engine: db.ImplOak, Codec: "json", DataDir: "data", Name: "users", Version: 1, LogLevel: "info"}
	require.NoError(t, c.Validate())
	assert.Contains(t, c.String(), "Data Directory")
	assert.Contains(t, c.String(), "users")

	c.DataDir = ""
	assert.Error(t, c.Validate(), "file engines need a directory")

	c.Engine = db.ImplMaple
	assert.NoError(t, c.Validate())
	assert.NotContains(t, c.String(), "Data Directory")

	c.Version = 0
	assert.Error(t, c.Validate())

	c.Version, c.Engine = 1, "pine"
	assert.Error(t, c.Validate())
}
