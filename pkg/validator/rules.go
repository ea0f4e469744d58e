package validator

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

func validateRating(fl validator.FieldLevel) bool {
	switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
	case "positive", "negative":
		return true
	}
	return false
}

func validateWebURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
