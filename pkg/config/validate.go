package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"tableflip.dev/levelreq/pkg/level"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("level_length", validateLength)
		_ = v.RegisterValidation("level_difficulty", validateDifficulty)
		validate = v
	})
	return validate
}

func validateLength(fl validator.FieldLevel) bool {
	return level.Length(fl.Field().String()).Valid()
}

func validateDifficulty(fl validator.FieldLevel) bool {
	return level.Difficulty(fl.Field().String()).Valid()
}

// ErrInvalid is wrapped by every error Validate returns.
var ErrInvalid = errors.New("config: invalid settings")

// Validate checks enum values and colors before settings are persisted.
func (c Config) Validate() error {
	err := validatorInstance().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %q fails %s", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
