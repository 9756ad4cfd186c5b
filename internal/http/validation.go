package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"meatshop/internal/service"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

var registerOnce sync.Once

// registerValidators подключает к валидатору gin правило phone и имена полей из json-тегов
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			phone := strings.NewReplacer(" ", "", "-", "").Replace(fl.Field().String())
			return phonePattern.MatchString(phone)
		})
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = f.Tag.Get("form")
			}
			return name
		})
	})
}

// bindingErrors ошибки привязки JSON-тела
func bindingErrors(err error) []service.FieldError {
	return fieldErrors(err, service.FieldError{Field: "body", Message: "Invalid request body"})
}

// queryErrors ошибки привязки query-параметров
func queryErrors(err error) []service.FieldError {
	return fieldErrors(err, service.FieldError{Field: "query", Message: "Invalid query parameters"})
}

// fieldErrors раскладывает ошибки валидатора по полям; ошибки разбора сводятся к malformed
func fieldErrors(err error, malformed service.FieldError) []service.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []service.FieldError{malformed}
	}
	out := make([]service.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, service.FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return out
}

// fieldPath путь поля без имени корневой структуры: deliveryAddress.phone, items[0].quantity
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Valid email is required"
	case "phone":
		return "Valid phone number is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
