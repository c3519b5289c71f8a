package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoMarkets       = errors.New("no admissible markets")
	ErrNoActiveCohort  = errors.New("no active cohort")
	ErrBudgetExhausted = errors.New("budget exhausted")
	ErrLockHeld        = errors.New("lock already held")
)
