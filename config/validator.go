package config

import (
	"errors"
	"fmt"
)

// Validator a decoded section that can check itself
type Validator interface {
	Validate() error
}

type section struct {
	name string
	v    Validator
}

func (s section) Validate() error {
	if err := s.v.Validate(); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

// Section prefixes v's errors with the config key it was read from
func Section(name string, v Validator) Validator {
	return section{name: name, v: v}
}

// ValidateAll runs every validator and joins the failures, so one pass
// reports every broken section
func ValidateAll(validators ...Validator) error {
	var errs []error
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
