package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/snapvault/snapvault/internal/logging"
)

type recordingLogger struct {
	infos []string
}

func (r *recordingLogger) Debugf(string, ...interface{}) {}
func (r *recordingLogger) Infof(msg string, args ...interface{}) {
	r.infos = append(r.infos, msg)
}
func (r *recordingLogger) Warnf(string, ...interface{})  {}
func (r *recordingLogger) Errorf(string, ...interface{}) {}

func TestModuleFallsBackToDefault(t *testing.T) {
	rec := &recordingLogger{}
	logging.SetDefault(rec)
	t.Cleanup(func() { logging.SetDefault(&recordingLogger{}) })

	get := logging.Module("test")
	get(context.Background()).Infof("hello")

	require.Equal(t, []string{"hello"}, rec.infos)
}

func TestWithLoggerOverridesContextLogger(t *testing.T) {
	logging.SetDefault(&recordingLogger{})

	ctxLogger := &recordingLogger{}
	ctx := logging.WithLogger(context.Background(), ctxLogger)

	get := logging.Module("test")
	get(ctx).Infof("scoped")

	require.Equal(t, []string{"scoped"}, ctxLogger.infos)
}

func TestNewZapDefaultsUnknownLevelToInfo(t *testing.T) {
	l, err := logging.NewZap("not-a-real-level")
	require.NoError(t, err)
	require.NotNil(t, l)

	sl, ok := l.(*zap.SugaredLogger)
	require.True(t, ok)
	require.True(t, sl.Desugar().Core().Enabled(zapcore.InfoLevel))
	require.False(t, sl.Desugar().Core().Enabled(zapcore.DebugLevel))
}
