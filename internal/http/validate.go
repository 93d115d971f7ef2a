package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/order-fulfillment-service/internal/apperr"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the validate tags on payload and reports the failures as
// a validation error.
func validateStruct(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fmt.Sprintf("%s must be > %s", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// decodeJSON reads a JSON body into dst and validates it. When allowEmpty is
// set, a request without a body leaves dst untouched.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	if allowEmpty && r.ContentLength == 0 {
		return validateStruct(dst)
	}
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return &requestError{status: http.StatusUnsupportedMediaType, code: "unsupported_media_type", details: "expected application/json"}
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return validateStruct(dst)
		}
		return &requestError{status: http.StatusBadRequest, code: "invalid_json", details: err.Error()}
	}
	return validateStruct(dst)
}
