package payment

import "errors"

var (
	// Caller-correctable input errors
	ErrValidation = errors.New("invalid request")

	// Lifecycle errors
	ErrNotFound              = errors.New("request not found")
	ErrExpired               = errors.New("request expired")
	ErrRequestNotCancellable = errors.New("request can no longer be cancelled")
	ErrInvalidState          = errors.New("invalid request state")

	// Signature errors
	ErrInvalidSignature = errors.New("signature does not match stored witness")

	// Sponsor limits
	ErrGasPriceTooHigh = errors.New("gas price exceeds sponsor ceiling")
	ErrBudgetExceeded  = errors.New("sponsor gas budget exceeded")

	// External boundary errors
	ErrExternalService  = errors.New("external service unavailable")
	ErrSettlementFailed = errors.New("settlement failed")

	// Configuration errors
	ErrUnknownNetwork     = errors.New("unknown network")
	ErrSimulationDisabled = errors.New("simulated settlement is not enabled")
)
