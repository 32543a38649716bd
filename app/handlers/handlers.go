// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"fmt"
	"strings"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/dto"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/go-playground/validator/v10"
)

// newValidator builds the request validator with the domain's custom tags
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("country_allowed", func(fl validator.FieldLevel) bool {
		return models.ValidCountry(fl.Field().String())
	})

	v.RegisterValidation("header_name", func(fl validator.FieldLevel) bool {
		name := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		if name == "" {
			return false
		}
		_, reserved := dto.ReservedHeaderNames[name]
		return !reserved
	})

	return v
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	case "country_allowed":
		return err.Field() + " is not a supported country"
	case "header_name":
		return err.Field() + " is empty or reserved"
	default:
		return err.Field() + " is invalid"
	}
}
