package coordinator

import "errors"

// ErrCoordinatorClosed is returned when operations are performed on a closed
// coordinator.
var ErrCoordinatorClosed = errors.New("coordinator is closed")

// ErrInvalidConfig is returned when the coordinator configuration is invalid.
var ErrInvalidConfig = errors.New("invalid coordinator configuration")

// ErrConfirmationRequired is returned when a full cache wipe is requested
// without the explicit confirmation flag.
var ErrConfirmationRequired = errors.New("full eviction requires explicit confirmation")

// ErrUnknownStatement is returned when a raw statement cannot be mapped to an
// entity type.
var ErrUnknownStatement = errors.New("statement does not name a recognized write target")
