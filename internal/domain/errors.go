package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrUnavailable = errors.New("upstream unavailable")
