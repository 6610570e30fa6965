package unittest

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var verbose = flag.Bool("vv", false, "print debugging logs")

// Logger returns a debug level logger.
// use -vv flag to print debugging logs for tests
func Logger() zerolog.Logger {
	if !*verbose {
		return zerolog.New(io.Discard).Level(zerolog.DebugLevel)
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// LogRecorder keeps the lines written by a logger, for tests that inspect log output.
// It is safe for concurrent use.
type LogRecorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogRecorder returns a recorder and a debug level logger writing to it.
func NewLogRecorder() (*LogRecorder, zerolog.Logger) {
	r := &LogRecorder{}
	return r, zerolog.New(r).Level(zerolog.DebugLevel)
}

func (r *LogRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// Entries decodes every recorded line in order.
func (r *LogRecorder) Entries(t testing.TB) []map[string]interface{} {
	r.mu.Lock()
	text := r.buf.String()
	r.mu.Unlock()

	var entries []map[string]interface{}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := make(map[string]interface{})
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "log line %q", line)
		entries = append(entries, entry)
	}
	return entries
}

// Messages returns the messages recorded at level.
func (r *LogRecorder) Messages(t testing.TB, level zerolog.Level) []string {
	var messages []string
	for _, entry := range r.Entries(t) {
		if entry[zerolog.LevelFieldName] == level.String() {
			msg, _ := entry[zerolog.MessageFieldName].(string)
			messages = append(messages, msg)
		}
	}
	return messages
}
