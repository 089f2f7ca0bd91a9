package replica

import "errors"

var ErrTaskNotFound = errors.New("task not found")
var ErrAmbiguousRef = errors.New("task reference matches several tasks")
