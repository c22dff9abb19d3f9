package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"hello-world-api/internal/domain"
)

var registerTagNames sync.Once

// useJSONNames makes validation errors report the JSON field name.
func useJSONNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bindJSON decodes the request body into dst, rejecting unknown keys, and
// runs the binding validator over it.
func bindJSON(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domain.Validation(fmt.Sprintf("'%s' is Invalid", typeErr.Field))
		}
		return domain.Validation("Invalid Payload")
	}

	if err := binding.Validator.ValidateStruct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			if fe.Tag() == "required" {
				return domain.Validation(fmt.Sprintf("'%s' is Required", fe.Field()))
			}
			return domain.Validation(fmt.Sprintf("'%s' is Invalid", fe.Field()))
		}
		return domain.Validation("Invalid Payload")
	}
	return nil
}
