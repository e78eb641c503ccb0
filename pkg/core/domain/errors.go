package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the kind shared by every rejected input.
	ErrValidation = errors.New("validation failed")

	ErrInvalidURL       = fmt.Errorf("%w: invalid url", ErrValidation)
	ErrSchemeNotAllowed = fmt.Errorf("%w: only http and https urls are allowed", ErrValidation)
	ErrMissingHost      = fmt.Errorf("%w: url must have a host", ErrValidation)

	ErrNotFound    = errors.New("link not found")
	ErrStorage     = errors.New("storage failure")
	ErrRender      = errors.New("qr rendering failed")
	ErrIDCollision = errors.New("could not allocate a unique link id")
)
