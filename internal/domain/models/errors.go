package models

import "errors"

var (
	// ErrOutOfOrder marks a candle whose timestamp does not strictly follow
	// the last accepted one. The offending update is dropped, state is kept.
	ErrOutOfOrder = errors.New("candle out of order")

	// ErrInsufficientData marks analytic state whose window is not yet full.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrCircuitOpen is returned by the gateway while an endpoint class is
	// shedding load after repeated upstream failures.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrRateLimited marks an upstream rate-limit rejection (retryable).
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstreamPermanent marks auth/validation failures that must not be
	// retried.
	ErrUpstreamPermanent = errors.New("permanent upstream failure")
)
