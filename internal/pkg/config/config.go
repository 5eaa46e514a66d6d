// internal/pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 聚合了服务的全部可调参数。
// 显式构造、显式注入，不提供任何包级的全局可变状态。
type Config struct {
	ServiceName string `yaml:"serviceName"`
	HTTPPort    int    `yaml:"httpPort"`

	Kafka struct {
		Brokers         []string `yaml:"brokers"`
		OrderTopic      string   `yaml:"orderTopic"`
		InventoryTopic  string   `yaml:"inventoryTopic"`
		DeadLetterTopic string   `yaml:"deadLetterTopic"`
		GroupID         string   `yaml:"groupId"`
	} `yaml:"kafka"`

	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`

	Redis struct {
		Addr      string        `yaml:"addr"`
		OpTimeout time.Duration `yaml:"opTimeout"`
	} `yaml:"redis"`

	Idempotency struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"idempotency"`

	Outbox struct {
		PollInterval time.Duration `yaml:"pollInterval"`
		BatchSize    int           `yaml:"batchSize"`
	} `yaml:"outbox"`

	Processing struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"processing"`

	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
}

// Default 返回可以直接在本地 docker-compose 环境跑起来的默认配置。
func Default() *Config {
	cfg := &Config{
		ServiceName: "inventory-service",
		HTTPPort:    8083,
	}
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.OrderTopic = "order-events"
	cfg.Kafka.InventoryTopic = "inventory-events"
	cfg.Kafka.DeadLetterTopic = "order-events-dlt"
	cfg.Kafka.GroupID = "inventory-service-consumer-group"
	cfg.MySQL.DSN = "root:root@tcp(localhost:3306)/swiftcart?parseTime=true"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.OpTimeout = 500 * time.Millisecond
	cfg.Idempotency.TTL = 24 * time.Hour
	cfg.Outbox.PollInterval = 5 * time.Second
	cfg.Outbox.BatchSize = 100
	cfg.Processing.Timeout = 10 * time.Second
	cfg.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	return cfg
}

// Load 在默认值之上叠加 YAML 文件（如果存在）和环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "read config file %s", path)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ORDER_TOPIC"); v != "" {
		c.Kafka.OrderTopic = v
	}
	if v := os.Getenv("INVENTORY_TOPIC"); v != "" {
		c.Kafka.InventoryTopic = v
	}
	if v := os.Getenv("DEAD_LETTER_TOPIC"); v != "" {
		c.Kafka.DeadLetterTopic = v
	}
	if v := os.Getenv("CONSUMER_GROUP_ID"); v != "" {
		c.Kafka.GroupID = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		c.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		c.Jaeger.Endpoint = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	if v := os.Getenv("OUTBOX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Outbox.BatchSize = n
		}
	}
	// 时长类的值用 Go duration 格式，如 "500ms"、"24h"。
	applyEnvDuration("REDIS_OP_TIMEOUT", &c.Redis.OpTimeout)
	applyEnvDuration("IDEMPOTENCY_TTL", &c.Idempotency.TTL)
	applyEnvDuration("OUTBOX_POLL_INTERVAL", &c.Outbox.PollInterval)
	applyEnvDuration("PROCESSING_TIMEOUT", &c.Processing.Timeout)
}

func applyEnvDuration(name string, target *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}
