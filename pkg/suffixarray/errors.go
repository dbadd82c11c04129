package suffixarray

import "errors"

// ErrCorruptIndex is returned (wrapped with detail) when a persisted index
// fails an invariant check at load time: missing magic header, unsupported
// version, or truncated/inconsistent CSR alignment data.
var ErrCorruptIndex = errors.New("suffixarray: corrupt index")
