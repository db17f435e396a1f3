package notification

import "errors"

// ErrBadRequest marks validation failures on ingestion input. Handlers
// map it to a 4xx; every other error is a 500.
var ErrBadRequest = errors.New("bad request")
