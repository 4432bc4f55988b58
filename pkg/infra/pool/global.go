package pool

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

var (
	globalManager   *Manager
	globalManagerMu sync.RWMutex
)

// GlobalConfig 全局池配置
type GlobalConfig struct {
	// DefaultPool 默认池配置
	DefaultPool *Config `json:"default" mapstructure:"default"`
	// BackgroundPool 后台任务池配置
	BackgroundPool *Config `json:"background" mapstructure:"background"`
}

// DefaultGlobalConfig 返回默认全局配置
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		DefaultPool:    DefaultPoolConfig(),
		BackgroundPool: BackgroundPoolConfig(),
	}
}

// InitGlobal 使用配置初始化全局池管理器，重复调用无副作用
func InitGlobal(config *GlobalConfig) error {
	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()

	if globalManager != nil {
		return nil
	}
	if config == nil {
		config = DefaultGlobalConfig()
	}

	manager := NewManager()
	pools := []struct {
		typ Type
		cfg *Config
	}{
		{DefaultPool, config.DefaultPool},
		{BackgroundPool, config.BackgroundPool},
	}
	for _, p := range pools {
		if p.cfg == nil {
			continue
		}
		if err := manager.Register(string(p.typ), p.typ, p.cfg); err != nil {
			manager.ReleaseAll()
			return err
		}
	}

	globalManager = manager
	logger.Infow("Worker pools initialized", "pools", manager.List())
	return nil
}

// GetGlobal 获取全局池管理器，未初始化时返回 nil
func GetGlobal() *Manager {
	globalManagerMu.RLock()
	defer globalManagerMu.RUnlock()
	return globalManager
}

// CloseGlobal 带超时关闭全局池管理器
func CloseGlobal(timeout time.Duration) error {
	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()

	if globalManager == nil {
		return nil
	}
	err := globalManager.ReleaseAllTimeout(timeout)
	globalManager = nil
	logger.Infow("Worker pools closed")
	return err
}

// SubmitToType 提交任务到指定类型的全局池
func SubmitToType(typ Type, task func()) error {
	mgr := GetGlobal()
	if mgr == nil {
		return ErrManagerNotInitialized
	}
	return mgr.Submit(string(typ), task)
}

// SubmitToTypeWithContext 提交带上下文的任务到指定类型的全局池
func SubmitToTypeWithContext(ctx context.Context, typ Type, task func()) error {
	mgr := GetGlobal()
	if mgr == nil {
		return ErrManagerNotInitialized
	}
	return mgr.SubmitWithContext(ctx, string(typ), task)
}

// Go 将任务提交到指定类型的池；池不可用时退化为独立 goroutine
func Go(typ Type, task func()) {
	if err := SubmitToType(typ, task); err != nil {
		logger.Debugw("Worker pool unavailable, spawning goroutine", "pool", typ, "error", err)
		go task()
	}
}

// StatsGlobal returns statistics for all pools.
func StatsGlobal() map[string]Info {
	mgr := GetGlobal()
	if mgr == nil {
		return nil
	}
	return mgr.Stats()
}
