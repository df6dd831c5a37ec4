package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, New("svc", "production").GetLevel())
	assert.Equal(t, zerolog.DebugLevel, New("svc", "staging").GetLevel())

	t.Setenv("YOOZAK_LOG_LEVEL", "WARN")
	assert.Equal(t, zerolog.WarnLevel, New("svc", "production").GetLevel())

	t.Setenv("YOOZAK_LOG_LEVEL", "nonsense")
	assert.Equal(t, zerolog.InfoLevel, New("svc", "production").GetLevel())
}

func TestAtLeast(t *testing.T) {
	t.Setenv("YOOZAK_LOG_LEVEL", "")
	l := New("svc", "staging")

	assert.Equal(t, zerolog.WarnLevel, l.AtLeast(zerolog.WarnLevel).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())

	quiet := New("svc", "production").AtLeast(zerolog.ErrorLevel)
	assert.Same(t, quiet, quiet.AtLeast(zerolog.InfoLevel))
}
