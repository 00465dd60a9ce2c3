package abi

import "errors"

var (
	errInvalidAlignment = errors.New("abi: alignment must be a non-zero power of two")
	errEmptyModuleID    = errors.New("abi: module id must not be empty")
	errArityMismatch    = errors.New("abi: entrypoint argument count does not match signature")
)
