package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const maskedSecret = "******"

// Dump 输出生效配置（YAML），敏感字段打码。
func Dump(c *Config) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("config is nil")
	}
	cp := *c
	cp.Sources = append([]SourceConfig(nil), c.Sources...)
	if cp.Notify.Ntfy.Token != "" {
		cp.Notify.Ntfy.Token = maskedSecret
	}
	out, err := yaml.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("dump config failed: %w", err)
	}
	return out, nil
}
