package utils

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"corpus-gen/internal/prompt"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// InitValidator 初始化验证器
func InitValidator() {
	validate = validator.New()

	// 错误信息中使用 json 字段名
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	// 注册自定义验证函数
	validate.RegisterValidation("style", validateStyle)
}

// GetValidator 获取验证器实例
func GetValidator() *validator.Validate {
	validateOnce.Do(InitValidator)
	return validate
}

// validateStyle 风格必须是已知的标签或代码
func validateStyle(fl validator.FieldLevel) bool {
	_, err := prompt.ParseStyle(fl.Field().String())
	return err == nil
}

// ValidateStruct 验证结构体
func ValidateStruct(s interface{}) error {
	v := GetValidator()
	if err := v.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors 格式化后的校验错误
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// formatValidationError 格式化验证错误
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var out ValidationErrors
	for _, e := range validationErrors {
		field := e.Field()
		param := e.Param()

		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("%s是必填字段", field)
		case "min":
			if isNumber(e.Kind()) {
				message = fmt.Sprintf("%s不能小于%s", field, param)
			} else {
				message = fmt.Sprintf("%s长度不能小于%s", field, param)
			}
		case "max":
			if isNumber(e.Kind()) {
				message = fmt.Sprintf("%s不能大于%s", field, param)
			} else {
				message = fmt.Sprintf("%s长度不能大于%s", field, param)
			}
		case "gte", "lte":
			message = fmt.Sprintf("%s超出范围: %v", field, e.Value())
		case "style":
			message = fmt.Sprintf("%s不是已知的风格: %v", field, e.Value())
		default:
			message = fmt.Sprintf("%s验证失败: %s", field, e.Tag())
		}
		out = append(out, FieldError{Field: field, Message: message})
	}
	return out
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
