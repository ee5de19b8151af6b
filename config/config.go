package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config 是服务的完整配置（YAML）。
//
// 所有超时/TTL 均以秒为单位的整数表示。零值回落到各组件的内置默认值。
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Server     ServerConfig     `yaml:"server"`
	Cache      CacheConfig      `yaml:"cache"`
	Repository RepositoryConfig `yaml:"repository"`
	Rank       RankConfig       `yaml:"rank"`
	ABTest     ABTestConfig     `yaml:"ab_test"`
	Feast      FeastConfig      `yaml:"feast"`
}

// ModelConfig 标识本实例服务的排序变体。名称参与缓存键推导，
// 不同变体的实例必须使用不同名称，否则缓存互相污染。
type ModelConfig struct {
	Name string `yaml:"name"`
}

// ServerConfig 是 HTTP 服务配置。
type ServerConfig struct {
	Addr string `yaml:"addr"` // 默认 ":8501"
}

// CacheConfig 是结果缓存配置。
type CacheConfig struct {
	Backend string `yaml:"backend"` // "redis"（默认）或 "memory"
	Addr    string `yaml:"addr"`    // redis 地址，如 "localhost:6379"
	DB      int    `yaml:"db"`
	TTL     int    `yaml:"ttl"` // 秒，0 表示不过期
}

// RepositoryConfig 是物品数据源（data-manager）配置。
type RepositoryConfig struct {
	Endpoint      string `yaml:"endpoint"`
	BatchSize     int    `yaml:"batch_size"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Timeout       int    `yaml:"timeout"`
}

// RankConfig 是排序端点配置。Endpoint 为空时所有请求按原始顺序降级。
type RankConfig struct {
	Endpoint string `yaml:"endpoint"`
	ABTest   bool   `yaml:"ab_test"` // 端点是 AB 代理时开启信封
	UserID   string `yaml:"user_id"` // 信封中的客户端标识（可选）
	Payload  string `yaml:"payload"` // "request"（默认）或 "rows"
	Timeout  int    `yaml:"timeout"`
}

// ABTestConfig 是 AB 分流代理的配置。DefaultEndpoint 必填。
type ABTestConfig struct {
	DefaultEndpoint EndpointConfig            `yaml:"default_endpoint"`
	UserIDs         map[string]EndpointConfig `yaml:"user_ids"`
	Rules           []RuleConfig              `yaml:"rules"`
	Timeout         int                       `yaml:"timeout"`
	Retries         int                       `yaml:"retries"`
}

// EndpointConfig 是一个排序变体端点。
type EndpointConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// RuleConfig 是一条 CEL 分流规则。
type RuleConfig struct {
	Condition string         `yaml:"condition"`
	Endpoint  EndpointConfig `yaml:"endpoint"`
}

// FeastConfig 是 Feast 在线特征补充配置，默认关闭。
type FeastConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	Project   string   `yaml:"project"`
	EntityKey string   `yaml:"entity_key"`
	Features  []string `yaml:"features"`
}

// Load 从 YAML 文件加载配置，然后应用环境变量覆盖并校验。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 用环境变量覆盖部署相关的字段，便于容器环境注入。
func (c *Config) applyEnv() {
	if v := os.Getenv("RANKPROXY_MODEL_NAME"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("RANKPROXY_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("RANKPROXY_CACHE_ADDR"); v != "" {
		c.Cache.Addr = v
	}
	if v := os.Getenv("RANKPROXY_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Cache.DB = db
		}
	}
	if v := os.Getenv("RANKPROXY_REPOSITORY_ENDPOINT"); v != "" {
		c.Repository.Endpoint = v
	}
	if v := os.Getenv("RANKPROXY_RANK_ENDPOINT"); v != "" {
		c.Rank.Endpoint = v
	}
	if v := os.Getenv("RANKPROXY_AB_DEFAULT_ENDPOINT"); v != "" {
		c.ABTest.DefaultEndpoint.URL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8501"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "redis"
	}
	if c.Rank.Payload == "" {
		c.Rank.Payload = "request"
	}
}

// Validate 检查启动所必需的字段。排序端点和 AB 配置是可选能力，不在此强制。
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("config: model.name is required")
	}
	if c.Repository.Endpoint == "" {
		return fmt.Errorf("config: repository.endpoint is required")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Addr == "" {
			return fmt.Errorf("config: cache.addr is required for redis backend")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q (supported: redis, memory)", c.Cache.Backend)
	}
	if c.Rank.Payload != "request" && c.Rank.Payload != "rows" {
		return fmt.Errorf("config: unknown rank payload %q (supported: request, rows)", c.Rank.Payload)
	}
	if c.Feast.Enabled && c.Feast.Host == "" {
		return fmt.Errorf("config: feast.host is required when feast is enabled")
	}
	return nil
}
