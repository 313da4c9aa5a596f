// Package forms decodes and validates submitted HTML forms.
package forms

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

// DateLayout is the format of <input type="date"> values.
const DateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return IsHTTPURL(fl.Field().String())
	})
	v.RegisterStructValidation(validateBannerDates, BannerForm{})
	return v
}

// Decode copies values into dst, a pointer to a struct with mapstructure
// tags. Single values decode to strings; repeated keys to slices.
func Decode(values url.Values, dst any) error {
	flat := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			flat[k] = vs[0]
		} else {
			flat[k] = vs
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToLinesHook,
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return fmt.Errorf("build form decoder: %w", err)
	}
	if err := dec.Decode(flat); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	return nil
}

// stringToLinesHook lets a textarea fill a []string field, one entry per
// non-blank line.
func stringToLinesHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
		return data, nil
	}
	return SplitLines(data.(string)), nil
}

// SplitLines splits s on newlines, trimming entries and dropping blanks.
func SplitLines(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	return lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	})
}

// Messager supplies form specific messages keyed "field.tag".
type Messager interface {
	Messages() map[string]string
}

// Validate checks form and returns messages keyed by field name, or nil when
// the form is valid.
func Validate(form any) map[string]string {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"form": err.Error()}
	}

	var custom map[string]string
	if m, ok := form.(Messager); ok {
		custom = m.Messages()
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// Slice elements report as "field[i]"; messages are per field.
		field, _, _ := strings.Cut(fe.Field(), "[")
		if _, seen := out[field]; seen {
			continue
		}
		if msg, ok := custom[field+"."+fe.Tag()]; ok {
			out[field] = msg
			continue
		}
		out[field] = defaultMessage(fe)
	}
	return out
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please enter %s", fe.Field())
	case "httpurl":
		return fmt.Sprintf("%s must be a valid http or https URL", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a valid date", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// IsHTTPURL reports whether s is an absolute http or https URL.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ParseDate parses an <input type="date"> value. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
