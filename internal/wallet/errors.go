package wallet

import "errors"

var (
	ErrUnauthorized        = errors.New("caller not authorized")
	ErrLimitExceeded       = errors.New("amount exceeds daily limit")
	ErrAlreadyPending      = errors.New("request of this kind already pending")
	ErrRateLimited         = errors.New("two-factor request issued too recently")
	ErrUnknownRequest      = errors.New("unknown oracle request")
	ErrAlreadyFulfilled    = errors.New("oracle request already fulfilled")
	ErrInvalidCommitment   = errors.New("invalid recovery commitment")
	ErrInvalidPassword     = errors.New("invalid recovery password")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrRecoveryDisabled    = errors.New("wallet has no recovery password")
	ErrWalletTerminated    = errors.New("wallet terminated")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletExists        = errors.New("wallet exists")
	ErrInvalidRequest      = errors.New("invalid request")
)
