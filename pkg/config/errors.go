package config

import "errors"

var ErrInvalidNodeID = errors.New("node id is not a uuid")
var ErrUnknownBackend = errors.New("unknown storage backend")
var ErrMissingPath = errors.New("missing storage path")
var ErrInvalidValueLogFileSize = errors.New("badger value log file size out of range")
var ErrUnknownLogLevel = errors.New("unknown log level")
