package form

import (
	"errors"
	"reflect"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Validator 校验表单并返回中文的字段错误，键为字段的 form 标签
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewValidator() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	// 错误信息中使用中文的字段名
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})

	return &Validator{validate: validate, translator: trans}, nil
}

// Check 返回所有字段错误，没有错误时返回 nil
func (v *Validator) Check(s any) map[string]string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"": err.Error()}
	}

	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	errs := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		key := fe.StructField()
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if name := f.Tag.Get("form"); name != "" {
				key = name
			}
		}
		// 每个字段只保留第一条错误
		if _, exists := errs[key]; !exists {
			errs[key] = fe.Translate(v.translator)
		}
	}
	return errs
}
