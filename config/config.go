package config

import (
	"encoding/json"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
)

type MultiDimLayout string

const (
	MultiDimNested MultiDimLayout = "nested"
	MultiDimFlat   MultiDimLayout = "flat"
)

// Options Serializer configuration
type Options struct {
	MaxDepth       int            `yaml:"max_depth" json:"max_depth" default:"64"`
	MultiDim       MultiDimLayout `yaml:"multi_dim" json:"multi_dim" default:"nested"`
	FlushThreshold int            `yaml:"flush_threshold" json:"flush_threshold" default:"4096"`
}

func New() *Options {
	opts := &Options{}
	if err := defaults.Set(opts); err != nil {
		panic(err)
	}
	return opts
}

func (o Options) String() string {
	bytes, err := json.Marshal(o)
	if err != nil {
		panic(err)
	}
	return string(bytes)
}

func (o *Options) Validate() error {
	if o.MaxDepth <= 0 {
		return errors.New("max_depth must be positive")
	}
	switch o.MultiDim {
	case MultiDimNested, MultiDimFlat:
	default:
		return errors.Errorf("invalid multi_dim: %s", o.MultiDim)
	}
	if o.FlushThreshold <= 0 {
		return errors.New("flush_threshold must be positive")
	}
	return nil
}
