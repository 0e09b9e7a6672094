package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("pretty console carries timestamp prefix", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Config{Level: "info", Pretty: true, Out: &buf})
		require.NoError(t, err)
		defer l.Close()

		l.Info().Str("agent", "BlueLake").Msg("restarting monitor")

		line := buf.String()
		assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} `), line)
		assert.Contains(t, line, "restarting monitor")
		assert.Contains(t, line, "agent=BlueLake")
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "watchdog.log")
		var buf bytes.Buffer

		l, err := New(Config{Level: "debug", File: logFile, Out: &buf})
		require.NoError(t, err)
		l.Debug().Msg("test message")
		require.NoError(t, l.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "test message")
		assert.Contains(t, buf.String(), "test message")
	})

	t.Run("bad level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Config{Level: "loud", Out: &buf})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, l.GetLevel())

		l.Debug().Msg("hidden")
		assert.Empty(t, buf.String())
	})
}
