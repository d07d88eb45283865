// Package validator runs request validation and reports failures as errcode.ErrInvalidRequest
package validator

import (
	"errors"

	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validatable implemented by request types, usually with ozzo-validation rules
type Validatable interface {
	Validate() error
}

// ValidateRequest nil when req is valid. Field errors come back under
// data.fields keyed by json name; nested structs use dotted keys such as
// "policy.rate". Any other error becomes the response message.
func ValidateRequest(req Validatable) error {
	err := req.Validate()
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return ConvertValidationError(fieldErrs)
	}
	return errcode.ErrInvalidRequest.WithMsg(err.Error())
}

// ConvertValidationError flattens errs into errcode.ErrInvalidRequest data
func ConvertValidationError(errs validation.Errors) error {
	fields := make(map[string]string, len(errs))
	flatten("", errs, fields)
	return errcode.ErrInvalidRequest.WithData("fields", fields)
}

func flatten(prefix string, errs validation.Errors, into map[string]string) {
	for name, err := range errs {
		if err == nil {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flatten(key, nested, into)
			continue
		}
		into[key] = err.Error()
	}
}
