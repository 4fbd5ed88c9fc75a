package core

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")

	ErrAlreadySpeaking  = errors.New("already speaking")
	ErrAlreadyQueued    = errors.New("already queued")
	ErrNotInQueue       = errors.New("not in queue")
	ErrNotASpeaker      = errors.New("not a speaker")
	ErrCannotRemoveHost = errors.New("cannot remove host")
)
