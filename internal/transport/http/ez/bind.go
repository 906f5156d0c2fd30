package ez

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	resp "account-api/internal/transport/http/response"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// 校验错误里的字段名使用 json 标签
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("maxbytes", maxBytes)
	}
}

// maxBytes 按 UTF-8 字节数限制字符串长度（max 按字符数计）
func maxBytes(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= n
}

// BindError 把 gin 绑定错误转换成带字段明细的 400（请求体超限为 413）
func BindError(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		fields := make([]FieldError, 0, len(ves))
		for _, fe := range ves {
			fields = append(fields, FieldError{
				Field:   fieldPath(fe),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: validationMessage(fe.Tag(), fe.Param()),
			})
		}
		return &AErr{Code: resp.CodeBadRequest, Msg: "Invalid request body", Data: map[string]any{"fields": fields}, Err: err}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &AErr{Code: resp.CodeBadRequest, Msg: "Invalid request body", Data: map[string]any{"json": "invalid_json_syntax"}, Err: err}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &AErr{Code: resp.CodeBadRequest, Msg: "Invalid request body", Err: err, Data: map[string]any{
			"json": "invalid_json_type",
			"fields": []FieldError{{
				Field:   typeErr.Field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
			}},
		}}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &AErr{Code: resp.CodeTooLarge, Msg: "request body too large", Err: err}
	}

	if errors.Is(err, io.EOF) {
		return BadRequest("Request body is required")
	}
	return &AErr{Code: resp.CodeBadRequest, Msg: "Invalid request", Data: map[string]any{"reason": err.Error()}, Err: err}
}

// fieldPath 去掉根结构体名，如 CreateUserRequest.email → email
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok && rest != "" {
		return rest
	}
	return fe.Field()
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "maxbytes":
		return "must be at most " + param + " bytes"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
