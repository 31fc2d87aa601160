package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entityacl/pkg/logger"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []logger.Option
		json bool
	}{
		{"default is json", nil, true},
		{"text", []logger.Option{logger.WithTextFormatter()}, false},
		{"last format wins", []logger.Option{logger.WithTextFormatter(), logger.WithJSONFormatter()}, true},
		{"explicit format", []logger.Option{logger.WithFormat(logger.FormatText)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := &bytes.Buffer{}
			log := logger.New(append(tt.opts, logger.WithOutput(buf))...)
			log.Info("grant applied")

			if tt.json {
				entry := decode(t, buf)
				assert.Equal(t, "INFO", entry["level"])
				assert.Equal(t, "grant applied", entry["msg"])
				return
			}
			assert.Contains(t, buf.String(), `msg="grant applied"`)
		})
	}
}

func TestNew_Level(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithLevel(slog.LevelWarn))

	log.Info("skipped")
	assert.Empty(t, buf.String())
	log.Warn("kept")
	assert.Equal(t, "kept", decode(t, buf)["msg"])
}

func TestNew_AttrsAndContext(t *testing.T) {
	t.Parallel()
	type commandKey struct{}

	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithAttr(slog.String("service", "aclctl")),
		logger.WithContextValue("command", commandKey{}),
		logger.WithContextExtractors(nil),
	)

	ctx := context.WithValue(context.Background(), commandKey{}, "seed")
	log.With(logger.EntityType("folder")).InfoContext(ctx, "cascade",
		logger.Mask(permission.ReadUpdate),
	)
	entry := decode(t, buf)
	assert.Equal(t, "aclctl", entry["service"])
	assert.Equal(t, "seed", entry["command"])
	assert.Equal(t, "folder", entry["entity_type"])
	assert.Equal(t, "update|read", entry["mask"])

	buf.Reset()
	log.InfoContext(context.Background(), "outside a command")
	assert.NotContains(t, decode(t, buf), "command")
}

func TestSetAsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	logger.SetAsDefault(logger.New(logger.WithOutput(buf)))
	slog.Info("default")
	assert.Equal(t, "default", decode(t, buf)["msg"])
}

func TestWithFormatPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		logger.New(logger.WithFormat(logger.Format("xml")))
	})
}
