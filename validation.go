package usersys

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

// FormatValidationErrorToMap flattens ozzo validation errors into field
// messages
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if fields := ValidationErrors(err); fields != nil {
		return fields
	}

	out["form"] = err.Error()
	return out
}

// ValidateStringEquals returns a rule that checks a value equals str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values do not match")
		}
		return nil
	}
}
