package core

import "errors"

// Sentinel errors a caller can distinguish programmatically. Per-job
// failures funnel into these kinds rather than panicking; see
// ERROR HANDLING DESIGN in SPEC_FULL.md.
var (
	ErrSourceUnreadable          = errors.New("assetc: source file missing or unreadable")
	ErrCodecFailure              = errors.New("assetc: codec failed to decode source")
	ErrUnsupportedFormat         = errors.New("assetc: unknown or invalid target format")
	ErrResolutionNotBlockAligned = errors.New("assetc: resolution not divisible by block extent")
	ErrCompressionFailure        = errors.New("assetc: compression encoder failure")
	ErrBinaryWriteFailure        = errors.New("assetc: binary output open/write/flush failure")
	ErrDependencyMissing         = errors.New("assetc: required dependency asset not present in asset database")
	ErrAsyncLoadEmpty            = errors.New("assetc: async asset load returned empty bytes")
	ErrUnknown                   = errors.New("assetc: unknown error")
)
