package store

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyExists     = errors.New("record already exists")
	ErrUnknownTable      = errors.New("unknown entity table")
	ErrMissingID         = errors.New("record has no id")
	ErrUnfilterableField = errors.New("field cannot be filtered")
	ErrUnknownDriver     = errors.New("unknown database driver")
)
