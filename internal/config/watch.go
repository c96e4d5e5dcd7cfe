package config

import (
	"fmt"
	"strings"

	"klinefetch/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchSignal 监听配置文件变化，重新加载成功后把 signal 段交给 fn。
// 加载失败只记录日志，保留上一份配置。
func WatchSignal(path string, fn func(SignalConfig)) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config watcher requires path")
	}
	if fn == nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("config listener panic: %v", r)
			}
		}()
		fn(cfg.Signal)
	})
	v.WatchConfig()
	return nil
}
