package logging

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRedactKey(t *testing.T) {
	t.Parallel()
	require.Equal(t, "AIzaSyB...", RedactKey("AIzaSyB1234567890"))
	require.Equal(t, "short", RedactKey("short"))
	require.Equal(t, "exactly", RedactKey("exactly"))
	require.Equal(t, "", RedactKey(""))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	require.Equal(t, log.PanicLevel, ParseLevel("none"))
	require.Equal(t, log.ErrorLevel, ParseLevel("error"))
	require.Equal(t, log.WarnLevel, ParseLevel("warn"))
	require.Equal(t, log.InfoLevel, ParseLevel("info"))
	require.Equal(t, log.DebugLevel, ParseLevel("debug"))
	require.Equal(t, log.InfoLevel, ParseLevel("anything-else"))
}

func TestDurationMS(t *testing.T) {
	t.Parallel()
	require.EqualValues(t, 1500, DurationMS(1500*time.Millisecond))
}
