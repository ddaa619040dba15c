package v1

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// Мобильный номер ЮАР: 0 и еще 9 цифр
	zaPhoneRegex = regexp.MustCompile(`^0[0-9]{9}$`)
	gmailRegex   = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@gmail\.com$`)
)

// newValidator регистрирует правила проверки полей учетной записи
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("za_phone", func(fl validator.FieldLevel) bool {
		return zaPhoneRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("gmail", func(fl validator.FieldLevel) bool {
		return gmailRegex.MatchString(fl.Field().String())
	})
	return v
}
