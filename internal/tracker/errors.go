package tracker

import "errors"

var (
	ErrInvalidState   = errors.New("invalid workflow state")
	ErrInvalidSetting = errors.New("invalid setting")
	ErrInvalidPath    = errors.New("invalid local audio path")
	ErrUnknownField   = errors.New("unknown tracker field")
	ErrInvalidValue   = errors.New("invalid field value")
)
