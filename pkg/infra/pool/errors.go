// Package pool provides named ants worker pools behind a global manager.
package pool

import "errors"

// 池相关错误定义
var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool closed")

	// ErrPoolNotFound 池不存在
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPoolAlreadyExists 池已存在
	ErrPoolAlreadyExists = errors.New("pool already exists")

	// ErrManagerNotInitialized 管理器未初始化
	ErrManagerNotInitialized = errors.New("pool manager not initialized")

	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("pool overloaded")
)
