package common

import "errors"

// configuration errors
var (
	ErrTooFewProcesses         = errors.New("a ring needs at least 2 processes")
	ErrScalingFactorTooSmall   = errors.New("scaling factor must be larger than the process count")
	ErrScalingFactorNotCoprime = errors.New("scaling factor must be coprime to the process count")
	ErrUnknownAlgorithm        = errors.New("unknown election algorithm")
	ErrUnknownTransport        = errors.New("unknown transport")
	ErrDuplicateUID            = errors.New("duplicate uid")
	ErrRankOutOfRange          = errors.New("rank out of range")
	ErrNoInitiator             = errors.New("no process can start the election")
	ErrRelayRatio              = errors.New("relay ratio must be in [0, 1)")
)

// protocol errors
var (
	ErrUnknownTag      = errors.New("unknown message tag")
	ErrUnexpectedTag   = errors.New("unexpected message tag")
	ErrPhaseBound      = errors.New("phase exceeds the ring bound")
	ErrNoLeader        = errors.New("no leader elected")
	ErrMultipleLeaders = errors.New("more than one leader elected")
	ErrLinkClosed      = errors.New("link closed")
)
