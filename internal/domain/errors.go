package domain

import "errors"

var (
	// ErrOperationInFlight is returned when a login, logout, or hydrate is
	// requested while another of those is still pending on the same manager.
	ErrOperationInFlight = errors.New("auth operation already in flight")

	// ErrStreamExists is returned when Create is called on a controller that
	// already holds a descriptor. A fresh controller is required.
	ErrStreamExists = errors.New("stream already created for this session")

	// ErrCreateSuperseded is returned to a creation request that was replaced
	// by a newer one before its result arrived.
	ErrCreateSuperseded = errors.New("creation request superseded")
)
