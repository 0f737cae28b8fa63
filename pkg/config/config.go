package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	DB    DBConfig    `mapstructure:"db"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	MQ    MQConfig    `mapstructure:"mq"`
	Store StoreConfig `mapstructure:"store"`
	Flow  FlowConfig  `mapstructure:"flow"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	GrpcPort string `mapstructure:"grpc_port"`
}

type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// DSN 返回 gorm postgres 驱动使用的连接串
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// URL 返回 golang-migrate 使用的 URL 形式
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

type MQConfig struct {
	Type   string `mapstructure:"type"` // "redis", "kafka" or "none"
	Topic  string `mapstructure:"topic"`
	Buffer int    `mapstructure:"buffer"`
}

type StoreConfig struct {
	DraftTTL time.Duration `mapstructure:"draft_ttl"`
}

// FlowConfig 状态容器的可调参数，默认值与内置常量一致
type FlowConfig struct {
	Tx     TxConfig     `mapstructure:"tx"`
	Notify NotifyConfig `mapstructure:"notify"`
	Modal  ModalConfig  `mapstructure:"modal"`
	Audit  AuditConfig  `mapstructure:"audit"`
}

type TxConfig struct {
	MaxRetries   int             `mapstructure:"max_retries"`
	RetryBackoff []time.Duration `mapstructure:"retry_backoff"`
}

type NotifyConfig struct {
	MaxVisible      int           `mapstructure:"max_visible"`
	DefaultDuration time.Duration `mapstructure:"default_duration"`
}

type ModalConfig struct {
	BaseZIndex int `mapstructure:"base_z_index"`
	ZIndexStep int `mapstructure:"z_index_step"`
}

type AuditConfig struct {
	Retention time.Duration `mapstructure:"retention"`
	Schedule  string        `mapstructure:"schedule"`
}

var Global Config

func Init() {
	v := viper.GetViper()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	cfg, err := Load(v)
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	Global = *cfg

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Load 在给定的 viper 实例上应用默认值与环境变量，并解码为 Config
func Load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Flow.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (f FlowConfig) validate() error {
	if f.Tx.MaxRetries < 0 {
		return fmt.Errorf("flow.tx.max_retries must be >= 0, got %d", f.Tx.MaxRetries)
	}
	if f.Tx.MaxRetries > 0 && len(f.Tx.RetryBackoff) == 0 {
		return errors.New("flow.tx.retry_backoff must not be empty when retries are enabled")
	}
	for i, d := range f.Tx.RetryBackoff {
		if d <= 0 {
			return fmt.Errorf("flow.tx.retry_backoff[%d] must be > 0, got %s", i, d)
		}
	}
	if f.Notify.MaxVisible < 1 {
		return fmt.Errorf("flow.notify.max_visible must be >= 1, got %d", f.Notify.MaxVisible)
	}
	if f.Modal.ZIndexStep < 1 {
		return fmt.Errorf("flow.modal.z_index_step must be >= 1, got %d", f.Modal.ZIndexStep)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.grpc_port", "50051")

	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "wallet_user")
	v.SetDefault("db.password", "wallet_password")
	v.SetDefault("db.name", "wallet_db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "wallet_flow_watchers")

	v.SetDefault("mq.type", "none")
	v.SetDefault("mq.topic", "wallet_flow_events_tx")
	v.SetDefault("mq.buffer", 256)

	v.SetDefault("store.draft_ttl", 24*time.Hour)

	v.SetDefault("flow.tx.max_retries", 3)
	v.SetDefault("flow.tx.retry_backoff", []time.Duration{time.Second, 2 * time.Second, 4 * time.Second})
	v.SetDefault("flow.notify.max_visible", 3)
	v.SetDefault("flow.notify.default_duration", 5*time.Second)
	v.SetDefault("flow.modal.base_z_index", 1000)
	v.SetDefault("flow.modal.z_index_step", 10)
	v.SetDefault("flow.audit.retention", 30*24*time.Hour)
	v.SetDefault("flow.audit.schedule", "@every 1h")
}
