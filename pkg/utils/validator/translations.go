package validator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// registerCustomTranslations registers translations for custom validation rules.
func (v *Validator) registerCustomTranslations() {
	if enTrans := v.GetTranslator(LangEN); enTrans != nil {
		for tag, message := range map[string]string{
			TagSessionID:    "{0} must be a valid session ID",
			TagQuestion:     "Question must be at least 3 characters",
			TagSafeFilename: "{0} must be a plain file name with a supported extension",
		} {
			registerTranslation(v.validate, enTrans, tag, message)
		}
	}

	if zhTrans := v.GetTranslator(LangZH); zhTrans != nil {
		for tag, message := range map[string]string{
			TagSessionID:    "{0}必须是有效的会话ID",
			TagQuestion:     "问题至少需要3个字符",
			TagSafeFilename: "{0}必须是不含路径且扩展名受支持的文件名",
		} {
			registerTranslation(v.validate, zhTrans, tag, message)
		}
	}
}

// registerTranslation registers a single translation.
func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}
