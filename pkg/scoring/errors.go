package scoring

import "errors"

// ErrContractViolation covers malformed scoring inputs: an
// elements-present ratio outside [0,1] is a contract the caller
// (the aggregation layer feeding Evidence) must never violate.
var ErrContractViolation = errors.New("scoring: contract violation")
