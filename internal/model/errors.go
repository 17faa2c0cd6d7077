package model

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAccountExists = errors.New("account already exists")
	ErrAlreadyOnline = errors.New("account already online")
)
