package models

import "errors"

var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrApplicationNotFound = errors.New("application not found")
)

var (
	ErrDeadlinePassed       = errors.New("application deadline has passed")
	ErrDuplicateApplication = errors.New("user already applied to this tournament")
	ErrDecisionFinal        = errors.New("application decision is final")
	ErrForbidden            = errors.New("not allowed to manage this tournament")
)

var (
	ErrValidation = errors.New("validation error")
)
