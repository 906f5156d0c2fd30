package ez

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"account-api/internal/domain"
	resp "account-api/internal/transport/http/response"
)

// 鉴权中间件写入 gin.Context 的键
const (
	CtxUserID = "userId"
	CtxRole   = "role"
	CtxClaims = "claims"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// AErr 统一错误对象，Code 即 HTTP 状态码
type AErr struct {
	Code int
	Msg  string
	Data any
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }

// Action I 入参，O 出参
type Action[I any, O any] struct {
	Method  string
	Path    string // 例："/auth/login"、"/users/:id"
	Binder  Binder
	Auth    bool     // 是否要求登录（检查 userId）
	Roles   []string // 限定角色（可选）
	Status  int      // 成功时的 HTTP 状态码，默认 200
	Handler func(c *gin.Context, in *I) (O, error)
}

// Fail 把任意错误写成统一响应；领域错误映射到对应状态码，未知错误只返回通用文案
func Fail(c *gin.Context, err error) {
	ae := classify(err)
	if ae.Code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(resp.Status(ae.Code), resp.ErrorWithData(ae.Code, ae.Msg, ae.Data))
}

func classify(err error) *AErr {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return &AErr{Code: resp.CodeNotFound, Msg: domain.Message(err)}
	case errors.Is(err, domain.ErrEmailTaken):
		return &AErr{Code: resp.CodeConflict, Msg: domain.Message(err)}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return &AErr{Code: resp.CodeUnauthorized, Msg: domain.Message(err)}
	case errors.Is(err, domain.ErrPasswordTooLong):
		return &AErr{Code: resp.CodeBadRequest, Msg: "Invalid request body", Data: map[string]any{"fields": []FieldError{{
			Field:   "password",
			Rule:    "maxbytes",
			Message: domain.Message(err),
		}}}}
	case errors.Is(err, context.DeadlineExceeded):
		return &AErr{Code: resp.CodeTimeout, Msg: "timeout", Err: err}
	}
	return &AErr{Code: resp.CodeServerError, Msg: "internal error", Err: err}
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		// 1) 鉴权/角色
		if a.Auth {
			if c.GetString(CtxUserID) == "" {
				Fail(c, Unauthorized("unauthorized"))
				return
			}
			if len(a.Roles) > 0 && !slices.Contains(a.Roles, c.GetString(CtxRole)) {
				Fail(c, Forbidden("forbidden"))
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			Fail(c, BindError(bindErr))
			return
		}

		// 3) 执行
		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, err)
			return
		}
		c.JSON(status, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}
