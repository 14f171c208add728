package router

import "errors"

// ErrGeneratorRequired is returned when New receives a nil generator.
var ErrGeneratorRequired = errors.New("generator required")
