package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(Options{Output: buf, Level: level}), buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()
	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestInfo_WritesJSON(t *testing.T) {
	log, buf := newBufferLogger(LevelInfo)

	log.Info("loan checked out", LoanID("loan1"), SchoolID("school1"))

	entry := decodeEntry(t, buf)
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "loan checked out", entry.Message)
	assert.Equal(t, "loan1", entry.Fields["loan_id"])
	assert.Equal(t, "school1", entry.Fields["school_id"])
	assert.NotEmpty(t, entry.Timestamp)
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBufferLogger(LevelWarn)

	log.Debug("too quiet")
	log.Info("still too quiet")
	assert.Zero(t, buf.Len())

	log.Warn("loud enough")
	assert.NotZero(t, buf.Len())
}

func TestWith_FieldsPropagate(t *testing.T) {
	log, buf := newBufferLogger(LevelInfo)

	child := log.With(Component("scheduler")).WithRequestID("req-7")
	child.Info("job started")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "scheduler", entry.Fields["component"])
	assert.Equal(t, "req-7", entry.Fields["request_id"])

	// The parent logger is unchanged.
	buf.Reset()
	log.Info("plain")
	entry = decodeEntry(t, buf)
	assert.Empty(t, entry.Fields)
}

func TestErrField(t *testing.T) {
	log, buf := newBufferLogger(LevelError)

	log.Error("checkout failed", Err(errors.New("book unavailable")))

	entry := decodeEntry(t, buf)
	assert.Equal(t, "book unavailable", entry.Fields["error"])

	assert.Nil(t, Err(nil).Value)
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, Field{Key: "count", Value: 3}, Int("count", 3))
	assert.Equal(t, Field{Key: "ok", Value: true}, Bool("ok", true))
	assert.Equal(t, Field{Key: "latency", Value: "1.5s"}, Latency(1500*time.Millisecond))
	assert.Equal(t, "book_id", BookID("b").Key)
	assert.Equal(t, "member_id", MemberID("m").Key)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLevel(" error "))

	// Unknown strings fall back to info.
	assert.Equal(t, LevelInfo, ParseLevel("loudest"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "FATAL", LevelFatal.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestContextRoundTrip(t *testing.T) {
	log, _ := newBufferLogger(LevelInfo)

	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))

	// A bare context yields a usable default.
	assert.NotNil(t, FromContext(context.Background()))
}

func TestInfof(t *testing.T) {
	log, buf := newBufferLogger(LevelInfo)

	log.Infof("swept %d loans", 4)

	entry := decodeEntry(t, buf)
	assert.Equal(t, "swept 4 loans", entry.Message)
}
