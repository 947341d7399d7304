package apperr

import (
	"errors"
	"fmt"
)

// 业务错误哨兵。核心层只返回这些类别（可带上下文消息包装），
// REST 层统一用 errors.Is 映射为 HTTP 状态码，不向外泄露存储细节。
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrEditWindow   = errors.New("edit window expired")
	ErrCancelWindow = errors.New("cancellation window expired")
	ErrInternal     = errors.New("internal error")
)

// InvalidInputf 构造带消息的 InvalidInput 错误。
func InvalidInputf(format string, args ...interface{}) error {
	return wrapf(ErrInvalidInput, format, args...)
}

// NotFoundf 构造带消息的 NotFound 错误。
func NotFoundf(format string, args ...interface{}) error {
	return wrapf(ErrNotFound, format, args...)
}

// Forbiddenf 构造带消息的 Forbidden 错误。
func Forbiddenf(format string, args ...interface{}) error {
	return wrapf(ErrForbidden, format, args...)
}

// Conflictf 构造带消息的 Conflict 错误。
// 消息需要区分“已被其他客户预订”与“供应商手动封锁”两种冲突。
func Conflictf(format string, args ...interface{}) error {
	return wrapf(ErrConflict, format, args...)
}

// InvalidStatef 构造带消息的 InvalidState 错误。
func InvalidStatef(format string, args ...interface{}) error {
	return wrapf(ErrInvalidState, format, args...)
}

// Internal 包装底层存储错误：记录原因但对调用方只表现为通用失败。
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

func wrapf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
