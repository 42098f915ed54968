package chipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 2, cfg.GetInt("synth.const_hole_width"))
	assert.Equal(t, 2, cfg.GetInt("synth.bit_width"))
	assert.Equal(t, 10, cfg.GetInt("verify.bit_width"))
	assert.False(t, cfg.GetBool("solver.parallel_sketch"))
	assert.Equal(t, "sketch", cfg.GetString("solver.binary"))
}

func TestConfigSetGetRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.SetInt("synth.bit_width", 5)
	assert.Equal(t, 5, cfg.GetInt("synth.bit_width"))

	cfg.SetBool("solver.parallel_codegen", true)
	assert.True(t, cfg.GetBool("solver.parallel_codegen"))

	cfg.SetString("solver.binary", "my-sketch")
	assert.Equal(t, "my-sketch", cfg.GetString("solver.binary"))
}

func TestConfigGetPanicsOnMissingKey(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetInt("does.not.exist") })
}

func TestConfigGetPanicsOnTypeMismatch(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetString("synth.bit_width") })
}

func TestConfigSetPanicsOnReassignDifferentType(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() {
		(*cfg)["synth.bit_width"].assignType(cfgValType_Bool)
	})
}
