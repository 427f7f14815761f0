package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender hands console-formatted lines to a testing.TB, so output from a sensor worker shows
// up under the test that started it.
type testAppender struct {
	tb      testing.TB
	encoder zapcore.Encoder
}

// NewTestAppender returns an appender that logs through tb.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb: tb, encoder: zapcore.NewConsoleEncoder(consoleEncoderConfig())}
}

func (app *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	app.tb.Helper()
	buf, err := app.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	app.tb.Log(strings.TrimSuffix(buf.String(), "\n"))
	return nil
}

func (app *testAppender) Sync() error {
	return nil
}
