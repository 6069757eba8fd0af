package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	opts := New()
	assert.Equal(t, 64, opts.MaxDepth)
	assert.Equal(t, MultiDimNested, opts.MultiDim)
	assert.Equal(t, 4096, opts.FlushThreshold)
	assert.NoError(t, opts.Validate())
}

func TestValidate(t *testing.T) {
	opts := New()
	opts.MaxDepth = 0
	assert.Equal(t, "max_depth must be positive", opts.Validate().Error())

	opts = New()
	opts.MultiDim = "diagonal"
	assert.Equal(t, "invalid multi_dim: diagonal", opts.Validate().Error())

	opts = New()
	opts.FlushThreshold = -1
	assert.Equal(t, "flush_threshold must be positive", opts.Validate().Error())
}
