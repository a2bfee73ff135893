package notify

import "errors"

// ErrSchedulerClosed is returned by Schedule after Close has been called.
var ErrSchedulerClosed = errors.New("notification scheduler closed")
