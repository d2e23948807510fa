// Package config loads the item storage engine's configuration, grounded
// on cmd/memcached/config/config.go in the teacher repo: a JSON file
// merged with command-line overrides via reflection, and the same
// b/k/m/g byte-size suffix grammar for anything size-shaped.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/facebookgo/stackerr"

	"github.com/skipor/itemcached/internal/slab"
	"github.com/skipor/itemcached/internal/util"
	"github.com/skipor/itemcached/item"
	"github.com/skipor/itemcached/log"
)

// InputConfig is the wire shape read from a JSON config file and
// overridden by flags, the same split as the teacher's InputConfig in
// cmd/memcached/main.go / cmd/memcached/config/config.go.
type InputConfig struct {
	HashPower int    `json:"hash-power,omitempty"`
	UseCAS    bool   `json:"use-cas,omitempty"`
	MinChunk  string `json:"min-chunk,omitempty"` // e.g. "64b"
	SlabSize  string `json:"slab-size,omitempty"` // Largest slab class chunk size, e.g. "1m".
	LogLevel  string `json:"log-level,omitempty"`
}

// Default mirrors cmd/memcached/config/config.go's Default().
func Default() *InputConfig {
	return &InputConfig{
		HashPower: 16,
		UseCAS:    true,
		MinChunk:  "64b",
		SlabSize:  "1m",
		LogLevel:  "info",
	}
}

// Merge overwrites def's fields with override's non-zero fields. Reflection
// based, same shape as the teacher's mergeConfigs/Merge helpers.
func Merge(def, override *InputConfig) {
	defVal := reflect.ValueOf(def).Elem()
	overrideVal := reflect.ValueOf(override).Elem()
	for i, end := 0, defVal.NumField(); i < end; i++ {
		ov := overrideVal.Field(i)
		if !util.IsZeroVal(ov) {
			defVal.Field(i).Set(ov)
		}
	}
}

// Config is the parsed, ready-to-wire configuration.
type Config struct {
	Store      item.Config
	ClassSizes []int
	LogLevel   log.Level
}

// Parse validates and converts an InputConfig, mirroring
// cmd/memcached/config/config.go's Parse.
func Parse(in InputConfig) (c Config, err error) {
	if in.HashPower <= 0 || in.HashPower > 32 {
		err = stackerr.Newf("invalid hash-power: %d", in.HashPower)
		return
	}
	c.Store.HashPower = uint(in.HashPower)
	c.Store.UseCAS = in.UseCAS

	minChunk, err := parseSize(in.MinChunk)
	if err != nil {
		err = stackerr.Newf("min-chunk parse error: %v", err)
		return
	}
	slabSize, err := parseSize(in.SlabSize)
	if err != nil {
		err = stackerr.Newf("slab-size parse error: %v", err)
		return
	}
	if slabSize < minChunk {
		err = stackerr.Newf("slab-size %d smaller than min-chunk %d", slabSize, minChunk)
		return
	}
	c.ClassSizes = slab.DefaultClassSizes(int(minChunk), int(slabSize))

	c.LogLevel, err = log.LevelFromString(in.LogLevel)
	if err != nil {
		err = stackerr.Newf("log-level parse error: %v", err)
		return
	}
	return
}

// Marshal is a debug helper mirroring the teacher's Marshal.
func Marshal(c *InputConfig) []byte {
	data, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}
	return data
}

// parseSize parses byte sizes with a b/k/m/g suffix, identical grammar to
// cmd/memcached/config/config.go's parseSize.
func parseSize(s string) (size int64, err error) {
	if len(s) < 2 {
		err = errors.New("invalid size format")
		return
	}
	sep := len(s) - 1
	sizeStr := s[:sep]
	exponentStr := s[sep:]
	var exponent uint32
	switch strings.ToLower(exponentStr) {
	case "b":
		exponent = 0
	case "k":
		exponent = 10
	case "m":
		exponent = 20
	case "g":
		exponent = 30
	default:
		err = errors.New("invalid exponent, only 'b', 'k', 'm', 'g' allowed")
		return
	}
	size, err = strconv.ParseInt(sizeStr, 10, 31)
	if err != nil {
		err = fmt.Errorf("size parse error: %s", err)
		return
	}
	size <<= exponent
	return
}
