package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/dwizi/group-warden/internal/warderr"
)

// Telegram accepts 1-256 characters from this set as a webhook secret.
var webhookSecretPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("sweep_schedule", validateSweepSchedule); err != nil {
		return fmt.Errorf("failed to register sweep_schedule validator: %w", err)
	}
	if err := v.RegisterValidation("webhook_secret", validateWebhookSecret); err != nil {
		return fmt.Errorf("failed to register webhook_secret validator: %w", err)
	}
	return nil
}

func validateSweepSchedule(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

func validateWebhookSecret(fl validator.FieldLevel) bool {
	return webhookSecretPattern.MatchString(fl.Field().String())
}

// Validate reports every problem at once as a fatal configuration error.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerCustomValidators(v); err != nil {
		return err
	}

	problems := append([]string(nil), c.adminIDProblems...)
	if err := v.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		for _, fieldErr := range validationErrors {
			problems = append(problems, formatFieldError(fieldErr))
		}
	}
	return warderr.Config(problems...)
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "ne":
		return fmt.Sprintf("%s must not contain %s", field, e.Param())
	case "gtefield":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "sweep_schedule":
		return fmt.Sprintf("%s must be a standard 5-field cron expression", field)
	case "webhook_secret":
		return fmt.Sprintf("%s may only contain A-Z, a-z, 0-9, _ and -", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
