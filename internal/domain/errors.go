package domain

import "errors"

// MsgError 给哨兵错误附带面向调用方的提示语，errors.Is 仍可命中 Kind
type MsgError struct {
	Kind error
	Msg  string
}

func (e *MsgError) Error() string { return e.Msg }
func (e *MsgError) Unwrap() error { return e.Kind }

func WithMsg(kind error, msg string) error { return &MsgError{Kind: kind, Msg: msg} }

// Message 取出提示语；没有则回退到错误本身
func Message(err error) string {
	var me *MsgError
	if errors.As(err, &me) {
		return me.Msg
	}
	return err.Error()
}
