package config

import "errors"

// ErrInvalidConfig indicates a configuration that cannot be served.
var ErrInvalidConfig = errors.New("invalid configuration")
