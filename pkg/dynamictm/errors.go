package dynamictm

import (
	"errors"

	"github.com/latticemt/dynamictm/pkg/suffixarray"
)

// ErrConfig is returned when configuration is invalid: an unknown feature
// template, a non-positive sample size, or a non-positive max-phrase bound.
// Raised at configuration time, before any query runs.
var ErrConfig = errors.New("dynamictm: invalid configuration")

// ErrIO wraps a failure reading or deserializing the persisted index.
// Raised at Load time, fatal.
var ErrIO = errors.New("dynamictm: index load failed")

// ErrCorruptIndex re-exports suffixarray's corruption sentinel so callers
// can errors.Is against a single package for every load-time failure mode.
var ErrCorruptIndex = suffixarray.ErrCorruptIndex
