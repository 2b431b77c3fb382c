package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inner struct {
	Window time.Duration `env:"WINDOW"`
	Tags   []string      `env:"TAGS" envSeparator:";"`
}

type outer struct {
	Name    string  `env:"NAME,required"`
	Enabled bool    `env:"ENABLED"`
	Weight  float64 `env:"WEIGHT"`
	Nested  inner
	skipped string  `env:"HIDDEN"`
	NoTag   int
}

func TestMarshalEnv(t *testing.T) {
	out, err := MarshalEnv(&outer{
		Name:   "tuskmem",
		Weight: 0.5,
		Nested: inner{Window: 24 * time.Hour, Tags: []string{"personal", "work"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "NAME=tuskmem\nENABLED=false\nWEIGHT=0.5\nWINDOW=24h0m0s\nTAGS=personal;work\n", out)
}

func TestMarshalEnv_RejectsNonPointer(t *testing.T) {
	_, err := MarshalEnv(outer{})
	assert.Error(t, err)
}
