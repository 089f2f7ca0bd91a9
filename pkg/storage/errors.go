package storage

import "errors"

var ErrNoSnapshot = errors.New("no snapshot stored")
var ErrEmptyKey = errors.New("empty snapshot key")
var ErrInvalidKey = errors.New("invalid snapshot key")
var ErrClosed = errors.New("snapshot store is closed")
