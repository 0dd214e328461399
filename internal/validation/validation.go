// Package validation checks account payloads against a fixed table of field
// rules. Payloads are whitelisted: any key without a rule rejects the whole
// request.
package validation

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/isdelr/accounts-api/internal/common"
)

// Wire names of the account fields.
const (
	FieldEmail     = "email"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldPassword  = "password"
)

// PasswordMinLength is the only constraint placed on passwords.
const PasswordMinLength = 8

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRegex  = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// Rule describes how a single field is validated.
type Rule struct {
	Pattern  *regexp.Regexp
	MinLen   int
	Required bool // must be present on create
	Mutable  bool // may be sent on self-update
}

// Rules is the full field table. Keys not listed here are never accepted.
var Rules = map[string]Rule{
	FieldEmail:     {Pattern: emailRegex, Required: true},
	FieldFirstName: {Pattern: nameRegex, Required: true, Mutable: true},
	FieldLastName:  {Pattern: nameRegex, Required: true, Mutable: true},
	FieldPassword:  {MinLen: PasswordMinLength, Required: true, Mutable: true},
}

// fieldOrder fixes the order fields are checked in, so the reported field
// does not depend on map iteration.
var fieldOrder = []string{FieldEmail, FieldFirstName, FieldLastName, FieldPassword}

// Payload is a decoded JSON object body.
type Payload map[string]any

// FieldError names the field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match every FieldError with common.ErrValidation.
func (e *FieldError) Unwrap() error {
	return common.ErrValidation
}

// CreateInput is a validated registration payload.
type CreateInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// UpdateInput is a validated self-update payload. Nil means "leave as is".
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Password  *string
}

// ValidateCreate checks a registration payload.
func ValidateCreate(p Payload) (CreateInput, error) {
	if err := checkKnown(p, func(Rule) bool { return true }); err != nil {
		return CreateInput{}, err
	}

	values := make(map[string]string, len(fieldOrder))
	for _, field := range fieldOrder {
		rule := Rules[field]
		raw, ok := p[field]
		if !ok {
			if rule.Required {
				return CreateInput{}, &FieldError{Field: field, Reason: "is required"}
			}
			continue
		}
		v, err := checkValue(field, rule, raw)
		if err != nil {
			return CreateInput{}, err
		}
		values[field] = v
	}

	return CreateInput{
		Email:     values[FieldEmail],
		FirstName: values[FieldFirstName],
		LastName:  values[FieldLastName],
		Password:  values[FieldPassword],
	}, nil
}

// ValidateUpdate checks a self-update payload. Restricted fields are rejected
// even when their value equals the stored one.
func ValidateUpdate(p Payload) (UpdateInput, error) {
	if err := checkKnown(p, func(r Rule) bool { return r.Mutable }); err != nil {
		return UpdateInput{}, err
	}

	var in UpdateInput
	for _, field := range fieldOrder {
		raw, ok := p[field]
		if !ok {
			continue
		}
		v, err := checkValue(field, Rules[field], raw)
		if err != nil {
			return UpdateInput{}, err
		}
		switch field {
		case FieldFirstName:
			in.FirstName = &v
		case FieldLastName:
			in.LastName = &v
		case FieldPassword:
			in.Password = &v
		}
	}
	return in, nil
}

// checkKnown rejects keys that have no rule or whose rule is not allowed.
func checkKnown(p Payload, allowed func(Rule) bool) error {
	var rejected []string
	for key := range p {
		rule, ok := Rules[key]
		if !ok || !allowed(rule) {
			rejected = append(rejected, key)
		}
	}
	if len(rejected) == 0 {
		return nil
	}
	sort.Strings(rejected)
	return &FieldError{Field: rejected[0], Reason: "is not allowed"}
}

func checkValue(field string, rule Rule, raw any) (string, error) {
	v, ok := raw.(string)
	if !ok {
		return "", &FieldError{Field: field, Reason: "must be a string"}
	}
	if v == "" {
		return "", &FieldError{Field: field, Reason: "must not be empty"}
	}
	if rule.MinLen > 0 && len(v) < rule.MinLen {
		return "", &FieldError{Field: field, Reason: fmt.Sprintf("must be at least %d characters", rule.MinLen)}
	}
	if rule.Pattern != nil && !rule.Pattern.MatchString(v) {
		return "", &FieldError{Field: field, Reason: "has an invalid format"}
	}
	return v, nil
}
