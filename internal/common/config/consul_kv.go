package config

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/consul/api"
)

// LoadConfigFromConsulKV 从 Consul KV 读取配置。
// value 必须是与 Config 同构的 JSON；这里只做一次性读取和解析，
// 是否对 key 做动态 watch 由上层决定。
func LoadConfigFromConsulKV(consul ConsulConfig, key string) (*Config, error) {
	if key == "" {
		return nil, fmt.Errorf("consul kv key is empty")
	}

	client, err := api.NewClient(&api.Config{
		Address: fmt.Sprintf("%s:%d", consul.Host, consul.Port),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	pair, _, err := client.KV().Get(key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get consul kv key=%s: %w", key, err)
	}
	if pair == nil || len(pair.Value) == 0 {
		return nil, fmt.Errorf("consul kv key=%s is empty or not found", key)
	}

	cfg := &Config{}
	if err := json.Unmarshal(pair.Value, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal consul kv json key=%s: %w", key, err)
	}
	if cfg.Server.Name == "" {
		return nil, fmt.Errorf("consul kv key=%s: server.name is required", key)
	}
	return cfg, nil
}
