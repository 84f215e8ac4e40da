package service

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidPasscode    = errors.New("invalid passcode")
	ErrInvalidUserName    = errors.New("invalid user name")
	ErrInvalidLanguage    = errors.New("invalid language identifier")
	ErrProblemNotFound    = errors.New("problem not found")
	ErrInternalServer     = errors.New("internal server error")
	ErrStaleRun           = errors.New("run superseded by a newer request")
	ErrRoomNotInitialized = errors.New("room document not initialized")
)
