package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 是环境变量前缀。
const EnvPrefix = "SHOPREC_"

// PathEnvVar 可以指定配置文件路径（path 参数为空时生效）。
const PathEnvVar = EnvPrefix + "CONFIG"

// sliceConfigPaths 中的配置项来自环境变量时按逗号拆分。
var sliceConfigPaths = []string{
	"resolver.blacklist",
	"feedback.collectors",
	"feedback.kafka.brokers",
}

// Load 依次加载默认值、配置文件（可选）与环境变量，并校验结果。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey 把 SHOPREC_CACHE__REDIS__ADDR 转为 cache.redis.addr。
func envKey(key string) string {
	if key == PathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
