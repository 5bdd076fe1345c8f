// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package repository

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/danielhkuo/orgvote/models"
)

// Validator wraps go-playground/validator and reports failures as a
// validation ReasonError keyed by JSON field path.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s. The returned error, if any, is a *models.ReasonError.
func (v *Validator) Struct(s any) error {
	return v.convert(v.validate.Struct(s), "")
}

// Var validates a single value under the given field name.
func (v *Validator) Var(field string, value any, tag string) error {
	return v.convert(v.validate.Var(value, tag), field)
}

func (v *Validator) convert(err error, field string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := field
		if name == "" {
			name = fieldPath(fe.Namespace())
		}
		if _, exists := fields[name]; !exists {
			fields[name] = message(fe)
		}
	}
	return models.ValidationError(fields)
}

// fieldPath drops the struct name from a namespace such as
// "PollInput.questions[0].text".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		switch fe.Kind() {
		case reflect.Slice:
			return "must have at most " + fe.Param() + " items"
		case reflect.String:
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " items"
		}
		return "must be at least " + fe.Param()
	case "gtfield":
		return "must be after the start time"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

// mergeFields combines several validation results into one error.
func mergeFields(errs ...error) error {
	fields := map[string]string{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		re, ok := models.ReasonOf(err)
		if !ok || re.Reason != models.ReasonValidation {
			return err
		}
		for k, v := range re.Fields {
			if _, exists := fields[k]; !exists {
				fields[k] = v
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return models.ValidationError(fields)
}
