package scale

import "errors"

var (
	ErrEmptyInput    = errors.New("empty input")
	ErrInvalidRange  = errors.New("invalid feature range")
	ErrNotFitted     = errors.New("scaler is not fitted")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrNonFinite     = errors.New("non-finite value")
	ErrUnknownKind   = errors.New("unknown scaler kind")
)
