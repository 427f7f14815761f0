package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestConsoleOutputFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newImpl("sensors", INFO, true, NewWriterAppender(&buf))

	logger.Debug("dropped")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Infof("drained %d records", 64)
	line := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.Split(line, "\t")
	test.That(t, len(parts), test.ShouldEqual, 5)
	test.That(t, parts[1], test.ShouldEqual, "INFO")
	test.That(t, parts[2], test.ShouldEqual, "sensors")
	test.That(t, parts[3], test.ShouldStartWith, "logging/impl_test.go:")
	test.That(t, parts[4], test.ShouldEqual, "drained 64 records")
}

func TestSubloggerInheritsLevelAndAppenders(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(WARN)

	sub := logger.Sublogger("lps22hh")
	test.That(t, sub.GetLevel(), test.ShouldEqual, WARN)

	sub.Info("filtered")
	sub.Warnw("short drain", "want", 320, "got", 310)
	test.That(t, observed.Len(), test.ShouldEqual, 1)

	entry := observed.All()[0]
	test.That(t, entry.LoggerName, test.ShouldEqual, "lps22hh")
	test.That(t, entry.Message, test.ShouldEqual, "short drain")
	test.That(t, entry.ContextMap()["want"], test.ShouldEqual, int64(320))

	subsub := sub.Sublogger("worker")
	subsub.Error("boom")
	test.That(t, observed.All()[1].LoggerName, test.ShouldEqual, "lps22hh.worker")

	logger.SetLevel(DEBUG)
	test.That(t, subsub.GetLevel(), test.ShouldEqual, DEBUG)
}

func TestUnpairedKeyIsReported(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Infow("odd", "lonely")
	test.That(t, observed.Len(), test.ShouldEqual, 1)
	test.That(t, observed.All()[0].ContextMap()["lonely"], test.ShouldNotBeNil)
}

func TestDebugModeContext(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(ERROR)

	logger.CDebugf(context.Background(), "hidden")
	test.That(t, observed.Len(), test.ShouldEqual, 0)

	test.That(t, DebugTag(context.Background()), test.ShouldBeEmpty)

	ctx := EnableDebugMode(context.Background(), "")
	test.That(t, DebugTag(ctx), test.ShouldHaveLength, 6)
	logger.CDebugf(ctx, "shown %d", 1)
	test.That(t, observed.Len(), test.ShouldEqual, 1)
	test.That(t, observed.All()[0].ContextMap()[DebugTagField], test.ShouldEqual, DebugTag(ctx))

	ctx = EnableDebugMode(context.Background(), "reload")
	logger.CDebugf(ctx, "tagged")
	test.That(t, observed.All()[1].ContextMap()[DebugTagField], test.ShouldEqual, "reload")

	// a plain debug line below the level stays hidden even with debug mode on elsewhere
	logger.Debugf("hidden")
	test.That(t, observed.Len(), test.ShouldEqual, 2)
}

func TestLevelFromString(t *testing.T) {
	for input, expected := range map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"Error":   ERROR,
	} {
		level, err := LevelFromString(input)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}

	_, err := LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, level.UnmarshalJSON([]byte(`"warn"`)), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	out, err := level.MarshalJSON()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"warn"`)
}
