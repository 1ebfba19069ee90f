package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Merge copies other into v, prefixing every field with prefix.
func (v Violations) Merge(prefix string, other Violations) {
	for k, code := range other {
		v[prefix+k] = code
	}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func NonNegative(field string, val int64, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

func Positive(field string, val int64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

// PercentRange rejects percentages outside [0, 100].
func PercentRange(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() || val.GreaterThan(decimal.NewFromInt(100)) {
		v[field] = "out_of_range"
	}
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct runs the `validate` tags of s and returns the failures keyed by
// json field path, e.g. "items[0].name". Item paths drop the root struct name.
func Struct(s any) Violations {
	out := Violations{}
	err := instance().Struct(s)
	if err == nil {
		return out
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		out["_"] = "invalid"
		return out
	}
	for _, fe := range ves {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out[field] = code(fe)
	}
	return out
}

func code(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "gt":
		return "must_be_positive"
	case "gte", "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.String {
			return "too_short"
		}
		return "must_not_be_negative"
	case "lte", "max":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.String {
			return "too_long"
		}
		return "out_of_range"
	case "oneof":
		return "unsupported_value"
	}
	return "invalid"
}
