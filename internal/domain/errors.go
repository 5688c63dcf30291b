package domain

import "errors"

// Input validation faults.
var (
	ErrZeroAmount      = errors.New("amount must be positive")
	ErrBadTolerance    = errors.New("tolerance bps out of range")
	ErrBadFee          = errors.New("fee bps out of range")
	ErrZeroAddress     = errors.New("zero address")
)

// Authorization faults.
var (
	ErrNotInitiator = errors.New("caller is not the bet initiator")
	ErrNotOwner     = errors.New("caller is not the owner")
)

// Market and price faults. These are never recovered with a fallback price.
var (
	ErrMarketInactive     = errors.New("market is not an active registered market")
	ErrMarketFinalized    = errors.New("market is finalized")
	ErrPriceOutOfBounds   = errors.New("pool price outside (0, 1) range")
	ErrInconsistentPrices = errors.New("yes/no pool prices diverge beyond tolerance")
	ErrZeroLiquidity      = errors.New("pool reported zero liquidity")
	ErrDegenerateSample   = errors.New("pool returned degenerate price sample")
)

// State faults.
var (
	ErrBetNotFound      = errors.New("bet not found")
	ErrBetClosed        = errors.New("bet already closed")
	ErrAlreadyAccepted  = errors.New("bet already accepted")
	ErrDeadlineExpired  = errors.New("acceptance deadline expired")
	ErrSlippageExceeded = errors.New("required deposit exceeds acceptor ceiling")
	ErrPriceMoved       = errors.New("price moved beyond initiator tolerance")
	ErrBetBusy          = errors.New("operation already in progress for bet")
)

// External-call faults.
var (
	ErrTransferFailed = errors.New("collateral transfer failed")
	ErrMintFailed     = errors.New("outcome token mint failed")
	ErrZeroMint       = errors.New("mint returned zero tokens")
)

// Infrastructure.
var (
	ErrNotFound = errors.New("not found")
	ErrLockHeld = errors.New("lock already held")
)
