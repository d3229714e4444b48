// Package config holds the process-wide transform configuration: which
// implementation variant each basis family uses, and logging defaults.
//
// The table is installed explicitly with Set and read with Current. Spaces
// take a snapshot when they are built, so a later Set never changes a
// space that already exists.
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/notargets/spectral/utils"
)

// Family names a 1D basis family
type Family string

const (
	Fourier   Family = "fourier"
	Chebyshev Family = "chebyshev"
	Legendre  Family = "legendre"
	Jacobi    Family = "jacobi"
)

// Kind names an implementation variant of a local transform
type Kind string

const (
	KindDefault     Kind = ""
	KindFast        Kind = "fast"
	KindRecursive   Kind = "recursive"
	KindVandermonde Kind = "vandermonde"
)

var supported = map[Family][]Kind{
	Fourier:   {KindFast},
	Chebyshev: {KindFast, KindRecursive, KindVandermonde},
	Legendre:  {KindRecursive, KindVandermonde},
	Jacobi:    {KindVandermonde},
}

// Supports reports whether family f has an implementation of kind k
func Supports(f Family, k Kind) bool {
	for _, kk := range supported[f] {
		if kk == k {
			return true
		}
	}
	return false
}

// Transforms maps a basis family to its default kind
type Transforms map[Family]Kind

// KindOverrides is the per-call parameter object; entries win over the table
type KindOverrides map[Family]Kind

// Resolve returns the kind to use for family f
func (t Transforms) Resolve(f Family, overrides KindOverrides) Kind {
	if k, ok := overrides[f]; ok && k != KindDefault {
		return k
	}
	if k, ok := t[f]; ok {
		return k
	}
	return KindVandermonde
}

// Clone returns an independent copy
func (t Transforms) Clone() Transforms {
	c := make(Transforms, len(t))
	for f, k := range t {
		c[f] = k
	}
	return c
}

// Validate checks every entry against the supported variants
func (t Transforms) Validate() error {
	var result *multierror.Error
	families := make([]string, 0, len(t))
	for f := range t {
		families = append(families, string(f))
	}
	sort.Strings(families)
	for _, name := range families {
		f := Family(name)
		if _, ok := supported[f]; !ok {
			result = multierror.Append(result, fmt.Errorf("unknown basis family %q", f))
			continue
		}
		if !Supports(f, t[f]) {
			result = multierror.Append(result,
				fmt.Errorf("family %q has no %q transform", f, t[f]))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrConfiguration, err)
	}
	return nil
}

// Logging configures the default library logger
type Logging struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the complete process-wide configuration
type Config struct {
	Transforms Transforms `yaml:"transforms"`
	Logging    Logging    `yaml:"logging"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Transforms: Transforms{
			Fourier:   KindFast,
			Chebyshev: KindFast,
			Legendre:  KindVandermonde,
			Jacobi:    KindVandermonde,
		},
		Logging: Logging{Name: "spectral", Level: "warn"},
	}
}

// Clone returns a deep copy
func (c Config) Clone() Config {
	c.Transforms = c.Transforms.Clone()
	return c
}

var (
	mu      sync.RWMutex
	current = Default()
)

// Current returns a copy of the installed configuration
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current.Clone()
}

// Set validates and installs cfg
func Set(cfg Config) error {
	if err := cfg.Transforms.Validate(); err != nil {
		return err
	}
	mu.Lock()
	current = cfg.Clone()
	mu.Unlock()
	return nil
}

// Reset restores the built-in configuration
func Reset() {
	mu.Lock()
	current = Default()
	mu.Unlock()
}
