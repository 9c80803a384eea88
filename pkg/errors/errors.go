package errors

import "errors"

// ErrInvalidScope 作用域参数不完整或非法
// dto.Scope.Validate / dto.ParseScopeKey 返回的错误均包裹此哨兵
var ErrInvalidScope = errors.New("非法的数据作用域")
