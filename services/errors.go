package services

import (
	"errors"
	"fmt"
)

// Domain error kinds. Every operation returns one of these (possibly
// wrapped); none is fatal to the process. Handlers map them to HTTP
// statuses and corrective messages.
var (
	ErrAlreadyExists       = errors.New("player already registered")
	ErrNotRegistered       = errors.New("player not registered")
	ErrSelfReport          = errors.New("cannot report a match against yourself")
	ErrInvalidResult       = errors.New("invalid result, use w, l or d")
	ErrInvalidGameNumber   = errors.New("invalid game number, use 1 or 2")
	ErrNoPairing           = errors.New("no matching season pairing")
	ErrNoPendingReport     = errors.New("no matching pending report")
	ErrAlreadyReported     = errors.New("already reported, waiting for opponent confirmation")
	ErrConflict            = errors.New("reported results do not match")
	ErrAlreadySettled      = errors.New("game already settled")
	ErrNoActiveSeason      = errors.New("no active season")
	ErrSeasonAlreadyActive = errors.New("season already active")
	ErrEmptySignupList     = errors.New("no players signed up for the season")
	ErrNoTierMatch         = errors.New("no signed-up player matches any tier")
	ErrNotFound            = errors.New("not found")
)

// UnknownGroupError is returned when a pairings query names a group
// that does not exist in the requested season. Suggestions carry
// close group names for the caller's reply.
type UnknownGroupError struct {
	Group       string
	Season      int
	Suggestions []string
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("group %q not found in season %d", e.Group, e.Season)
}

func (e *UnknownGroupError) Unwrap() error { return ErrNotFound }
