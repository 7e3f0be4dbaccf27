package domain

import "errors"

var (
	ErrNotAction      = errors.New("not an action: expected an object with a string type field")
	ErrUnknownAction  = errors.New("unknown action type")
	ErrInvalidPayload = errors.New(`invalid payload: expected {type: string} or {kind:"broadcast", payload:{type: ...}}`)
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyRunning = errors.New("already running")
)
