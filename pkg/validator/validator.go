package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate - singleton экземпляр валидатора для переиспользования
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Регистрируем кастомные валидаторы
	_ = Validate.RegisterValidation("mailpriority", validateMailPriority)
}

// validateMailPriority проверяет приоритет письма; регистр не важен,
// пустое значение отсекается тегом omitempty
func validateMailPriority(fl validator.FieldLevel) bool {
	switch strings.ToUpper(fl.Field().String()) {
	case "NORMAL", "HIGH":
		return true
	default:
		return false
	}
}
