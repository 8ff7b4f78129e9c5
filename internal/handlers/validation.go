package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/charlesng35/staffhub/internal/models"
	appErrors "github.com/charlesng35/staffhub/pkg/errors"
	"github.com/charlesng35/staffhub/pkg/logger"
	"github.com/charlesng35/staffhub/pkg/response"
	appValidator "github.com/charlesng35/staffhub/pkg/validator"
)

var registerRules sync.Once

// registerValidationRules installs the custom tags used by request payloads.
func registerValidationRules() {
	registerRules.Do(func() {
		if err := appValidator.RegisterValidation("staffhub_role", func(fl validator.FieldLevel) bool {
			return models.Role(fl.Field().String()).Valid()
		}); err != nil {
			logger.WithModule("handlers").Error("register staffhub_role validation: " + err.Error())
		}
		if err := appValidator.RegisterValidation("staffhub_status", func(fl validator.FieldLevel) bool {
			return models.ProfileStatus(fl.Field().String()).Valid()
		}); err != nil {
			logger.WithModule("handlers").Error("register staffhub_status validation: " + err.Error())
		}
	})
}

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	registerValidationRules()

	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewValidation("Invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewValidation(formatValidationError(err)))
		return false
	}

	return true
}

func formatValidationError(err error) string {
	if err == nil {
		return "invalid request payload"
	}

	if ve, ok := err.(appValidator.ValidationErrors); ok {
		if len(ve) == 0 {
			return "invalid request payload"
		}

		messages := make([]string, 0, len(ve))
		for _, failure := range ve {
			field := prettifyFieldName(failure.Field)
			switch failure.Tag {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", field))
			case "email":
				messages = append(messages, fmt.Sprintf("%s must be a valid email address", field))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s characters", field, failure.Param))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, failure.Param))
			case "staffhub_role":
				messages = append(messages, fmt.Sprintf("%s must be admin or employee", field))
			case "staffhub_status":
				messages = append(messages, fmt.Sprintf("%s must be pending, active or rejected", field))
			default:
				if failure.Param != "" {
					messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
				} else {
					messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
				}
			}
		}
		return strings.Join(messages, "; ")
	}

	return "invalid request payload"
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// normalizePage mirrors the clamping applied by the services layer.
func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	return page, perPage
}
