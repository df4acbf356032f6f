package server

import "errors"

// ErrEngineRequired is returned by New when no engine is given.
var ErrEngineRequired = errors.New("engine required")
