package student

import (
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
)

var (
	PhoneRegex = regexp.MustCompile(`^\d{10}$`)

	phoneTag  = "phone10"
	phoneText = "{0} must be exactly 10 digits"

	sectionTag  = "section"
	sectionText = "{0} is not a valid section"

	gradeLevelTag  = "gradelevel"
	gradeLevelText = "{0} is not a valid class"

	sections = "ABCDEF"
)

// InitValidators registers the student validators. `allowedSections` is the configured section set.
func InitValidators(validate *validator.Validate, translator ut.Translator, allowedSections string) {
	if allowedSections != "" {
		sections = strings.ToUpper(allowedSections)
	}

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	core.RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	_ = validate.RegisterValidation(sectionTag, sectionValidation)
	core.RegisterCustomTranslation(validate, translator, sectionTag, sectionText)

	_ = validate.RegisterValidation(gradeLevelTag, gradeLevelValidation)
	core.RegisterCustomTranslation(validate, translator, gradeLevelTag, gradeLevelText)
}

func ValidPhone(phone string) bool { return PhoneRegex.MatchString(phone) }

// ValidSection reports whether `s` is a single uppercase letter from `set`.
func ValidSection(s, set string) bool {
	if len(s) != 1 || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	return strings.Contains(set, s)
}

func Sections() string { return sections }

func phoneValidation(fl validator.FieldLevel) bool {
	return ValidPhone(fl.Field().String())
}

func sectionValidation(fl validator.FieldLevel) bool {
	return ValidSection(fl.Field().String(), sections)
}

func gradeLevelValidation(fl validator.FieldLevel) bool {
	_, err := grade.ParseActive(fl.Field().String())
	return err == nil
}
