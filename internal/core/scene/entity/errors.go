package entity

import "errors"

var (
	// Lifecycle errors

	ErrRepresentationCreationFailed = errors.New("visual representation creation failed")
	ErrAlreadyInstantiated          = errors.New("entity already instantiated")

	// Component errors

	ErrInvalidComponent = errors.New("invalid component reference")
)
