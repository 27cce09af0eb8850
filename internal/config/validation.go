// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their YAML path so errors match what operators edit.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateGrants, GrantsConfig{})
	return v
}

// Durable backends need a location.
func validateGrants(sl validator.StructLevel) {
	g, ok := sl.Current().Interface().(GrantsConfig)
	if !ok {
		return
	}
	switch g.Backend {
	case "sqlite", "badger", "bolt":
		if g.Path == "" {
			sl.ReportError(g.Path, "path", "Path", "required_for_backend", g.Backend)
		}
	case "redis":
		if g.Redis.Addr == "" {
			sl.ReportError(g.Redis.Addr, "redis.addr", "Addr", "required_for_backend", g.Backend)
		}
	}
}

// Validate checks cfg and returns a *ValidationError listing every invalid field.
func Validate(cfg AppConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation failed: %w", err)
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out.Fields = append(out.Fields, FieldError{Field: field, Rule: fe.Tag(), Value: fe.Value()})
	}
	return out
}
