// Package pool runs bounded background work on an ants goroutine pool.
package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool closed")

	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("pool overloaded")

	// ErrInvalidPoolConfig 无效的池配置
	ErrInvalidPoolConfig = errors.New("invalid pool config")
)
