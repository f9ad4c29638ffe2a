package cachesync

import (
	"github.com/nvsync/cachesync/coordinator"
	"github.com/nvsync/cachesync/retry"
	"github.com/nvsync/cachesync/transport"
)

// ErrCoordinatorClosed is returned when operations are performed on a closed
// coordinator.
var ErrCoordinatorClosed = coordinator.ErrCoordinatorClosed

// ErrInvalidConfig is returned when the coordinator configuration is invalid.
var ErrInvalidConfig = coordinator.ErrInvalidConfig

// ErrConfirmationRequired is returned when a full cache wipe is requested
// without the explicit confirmation flag.
var ErrConfirmationRequired = coordinator.ErrConfirmationRequired

// ErrUnknownStatement is returned when a raw statement cannot be mapped to an
// entity type.
var ErrUnknownStatement = coordinator.ErrUnknownStatement

// ErrQueueFull is returned when the retry queue is at capacity.
var ErrQueueFull = retry.ErrQueueFull

// ErrTransportUnavailable is returned when a broadcast is attempted while the
// transport cannot reach its channel.
var ErrTransportUnavailable = transport.ErrTransportUnavailable
