package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, New(FormatHuman, "info").GetLevel())
	assert.Equal(t, zerolog.DebugLevel, New(FormatJSON, "DEBUG").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New(FormatJSON, "loud").GetLevel())
}

func TestFormatWriter(t *testing.T) {
	tests := []struct {
		format  string
		console bool
	}{
		{FormatHuman, true},
		{" Human ", true},
		{FormatJSON, false},
		{"", false},
		{"logfmt", false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := NewWithWriter(formatWriter(tt.format, buf))
			log.Info().Msg("hello")

			isJSON := strings.HasPrefix(buf.String(), "{")
			assert.Equal(t, tt.console, !isJSON, buf.String())
			assert.Contains(t, buf.String(), "hello")
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	assert.Contains(t, buf.String(), "test message")
}

func TestWithContext(t *testing.T) {
	ctx := WithContext(context.Background(), New(FormatHuman, "info"))
	assert.NotNil(t, ctx.Value(LoggerKey))
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("test")

	assert.NotZero(t, buf.Len())
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"uid":    "123",
		"action": "test",
	})

	log.Info().Msg("test message")

	out := buf.String()
	assert.Contains(t, out, `"uid":"123"`)
	assert.Contains(t, out, `"action":"test"`)
}
