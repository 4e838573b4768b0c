package ocr

import "errors"

// ErrUnknownIsolation is returned for an isolation strategy name that is not
// registered.
var ErrUnknownIsolation = errors.New("unknown isolation strategy")
