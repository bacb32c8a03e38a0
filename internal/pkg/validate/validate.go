package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

var (
	usernameRe   = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ0-9]+$`)
	safeEmailRe  = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ0-9@._]+$`)
	personNameRe = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ\- ]+$`)
)

// v is the package-level singleton validator. Custom tags are registered in
// init() before the first call to Struct.
var v = validator.New()

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	mustRegister("username", usernameRe)
	mustRegister("safeemail", safeEmailRe)
	mustRegister("personname", personNameRe)
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		_, err := NormalizePhone(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", "phone", err))
	}
}

var errInvalidPhone = errors.New("not a valid phone number")

// NormalizePhone parses an international number ("+1 650-253-0000") and
// returns it in E.164 form ("+16502530000"), the shape SNS expects.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return "", fmt.Errorf("parse phone: %w", err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func mustRegister(tag string, re *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// FieldErrors maps a JSON field name to a human-readable message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	msgs := make([]string, 0, len(fe))
	for f, m := range fe {
		msgs = append(msgs, f+": "+m)
	}
	return strings.Join(msgs, "; ")
}

// Struct validates the given struct using its validate tags.
// Returns FieldErrors on rule violations, nil when valid.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		out := FieldErrors{}
		for _, fe := range ve {
			out[fe.Field()] = message(fe)
		}
		return out
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "enter a valid email address"
	case "eqfield":
		return "passwords do not match"
	case "username", "safeemail", "personname":
		return "special characters are not allowed"
	case "phone":
		return "enter a valid phone number in international format"
	default:
		return fmt.Sprintf("failed '%s'", fe.Tag())
	}
}
