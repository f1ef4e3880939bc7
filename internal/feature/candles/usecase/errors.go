package usecase

import "errors"

// ErrInvalidRange is returned when a range query ends before it starts.
var ErrInvalidRange = errors.New("invalid time range")
