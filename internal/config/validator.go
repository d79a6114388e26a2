package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks field formats and reports every problem at once. The DSN is
// not checked here: a missing or malformed one starts the SDK disabled.
func Validate(o *Options) error {
	var errs []string

	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
	}

	if strings.ContainsRune(o.DatabasePath, 0) {
		errs = append(errs, "database_path: contains NUL byte")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
