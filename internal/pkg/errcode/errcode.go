package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrInternal
	ErrIndexBusy
	ErrAIUnavailable
	ErrStoreFailed
	ErrTooMany
)
