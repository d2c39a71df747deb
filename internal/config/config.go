package config

import (
	"fmt"
	"time"
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis_service"`
	Model      ModelConfig      `mapstructure:"model_services"`
	Generation GenerationConfig `mapstructure:"generation"`
	Staging    StagingConfig    `mapstructure:"staging"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	ProductionMode bool   `mapstructure:"production_mode"`
}

// GetAddress 获取服务器地址
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// 支持的数据库驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig Redis配置，仅用于跨实例的模型并发槽位
type RedisConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	DB             int    `mapstructure:"db"`
	Password       string `mapstructure:"password"`
	SlotTTLSeconds int    `mapstructure:"slot_ttl_seconds"`
}

// GetAddress 获取Redis地址
func (r *RedisConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GetSlotTTL 获取槽位过期时间
func (r *RedisConfig) GetSlotTTL() time.Duration {
	return time.Duration(r.SlotTTLSeconds) * time.Second
}

// 支持的模型服务提供方
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ModelConfig 模型服务配置
type ModelConfig struct {
	Provider          string  `mapstructure:"provider"`
	APIBase           string  `mapstructure:"api_base"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// GetTimeout 获取单次调用超时时间
func (m *ModelConfig) GetTimeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// GenerationConfig 语料生成参数
type GenerationConfig struct {
	DefaultCount int     `mapstructure:"default_count"`
	MaxCount     int     `mapstructure:"max_count"`
	MaxRuns      int     `mapstructure:"max_runs"`
	DefaultScore float64 `mapstructure:"default_score"`
}

// StagingConfig 暂存会话配置
type StagingConfig struct {
	MaxSessions int `mapstructure:"max_sessions"`
}

// CORSConfig CORS配置
type CORSConfig struct {
	Origins          []string `mapstructure:"origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}
