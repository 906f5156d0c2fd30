package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// New 保证 data 不为 null
func New(code int, msg string, data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(data interface{}) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error customMsg 为空时用默认文案
func Error(code int, customMsg string) Resp {
	return ErrorWithData(code, customMsg, nil)
}

func ErrorWithData(code int, customMsg string, data interface{}) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, data)
}

// Abort 以与 code 相同的 HTTP 状态码结束请求
func Abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(Status(code), Error(code, msg))
}

// Status 业务码映射为 HTTP 状态码（非法值按 500）
func Status(code int) int {
	if code < 100 || code > 599 {
		return http.StatusInternalServerError
	}
	return code
}
