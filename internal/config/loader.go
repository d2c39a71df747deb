package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
)

// LoadConfig 加载配置文件，进程内只加载一次
func LoadConfig(configFile string) (*Config, error) {
	var err error
	var cfg *Config

	once.Do(func() {
		cfg, err = loadConfigFromFile(configFile)
		if err == nil {
			globalConfig = cfg
		}
	})

	return globalConfig, err
}

// Load 不经过全局缓存直接加载配置
func Load(configFile string) (*Config, error) {
	return loadConfigFromFile(configFile)
}

// loadConfigFromFile 从文件加载配置
func loadConfigFromFile(configFile string) (*Config, error) {
	v := viper.New()

	// 设置配置文件路径
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// 默认查找 config.yaml
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 读取环境变量，例如 MODEL_SERVICES_API_KEY 覆盖 model_services.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// 0 是合法取值的键，只能在未配置时给默认值
	v.SetDefault("model_services.temperature", 1.0)
	v.SetDefault("generation.default_score", 0.9)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 未指定文件且默认位置不存在时，仅使用默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	setDefaults(&cfg)

	// 验证配置
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// bindEnvKeys 让 AutomaticEnv 对未出现在配置文件中的键同样生效
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port", "server.production_mode",
		"database.driver", "database.path", "database.dsn",
		"redis_service.enabled", "redis_service.host", "redis_service.port",
		"redis_service.password",
		"model_services.provider", "model_services.api_base", "model_services.api_key",
		"model_services.model", "model_services.timeout_seconds",
		"log.level",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 18080
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./database/corpus.db"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379 // 标准 Redis 端口
	}
	if cfg.Redis.SlotTTLSeconds == 0 {
		cfg.Redis.SlotTTLSeconds = 300
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = ProviderOpenAI
	}
	if cfg.Model.Provider == ProviderOpenAI && cfg.Model.APIBase == "" {
		cfg.Model.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model.Model == "" {
		cfg.Model.Model = "gpt-4o-mini"
	}
	if cfg.Model.TimeoutSeconds == 0 {
		cfg.Model.TimeoutSeconds = 120
	}
	if cfg.Model.MaxConcurrent == 0 {
		cfg.Model.MaxConcurrent = 4
	}
	// API Key 未配置时回退到各提供方的标准环境变量
	if cfg.Model.APIKey == "" {
		switch cfg.Model.Provider {
		case ProviderOpenAI:
			cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderGemini:
			cfg.Model.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if cfg.Generation.DefaultCount == 0 {
		cfg.Generation.DefaultCount = 10
	}
	if cfg.Generation.MaxCount == 0 {
		cfg.Generation.MaxCount = 100
	}
	if cfg.Generation.MaxRuns == 0 {
		cfg.Generation.MaxRuns = 5
	}
	if cfg.Staging.MaxSessions == 0 {
		cfg.Staging.MaxSessions = 256
	}
	if cfg.CORS.AllowMethods == nil {
		cfg.CORS.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if cfg.CORS.AllowHeaders == nil {
		cfg.CORS.AllowHeaders = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// validateConfig 验证配置
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务器端口: %d", cfg.Server.Port)
	}

	switch cfg.Database.Driver {
	case DriverSQLite:
		// 检查数据库目录是否存在
		if !strings.HasPrefix(cfg.Database.Path, "file:") && cfg.Database.Path != ":memory:" {
			dbDir := filepath.Dir(cfg.Database.Path)
			if _, err := os.Stat(dbDir); os.IsNotExist(err) {
				if err := os.MkdirAll(dbDir, 0755); err != nil {
					return fmt.Errorf("创建数据库目录失败: %w", err)
				}
			}
		}
	case DriverPostgres:
		if cfg.Database.DSN == "" {
			return fmt.Errorf("postgres 驱动需要配置 database.dsn")
		}
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", cfg.Database.Driver)
	}

	switch cfg.Model.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("不支持的模型服务提供方: %s", cfg.Model.Provider)
	}

	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		return fmt.Errorf("model_services.temperature 必须在 [0,2] 区间内")
	}
	if cfg.Model.MaxConcurrent < 0 || cfg.Model.RequestsPerSecond < 0 {
		return fmt.Errorf("模型并发数与速率不能为负数")
	}
	if cfg.Generation.MaxCount < cfg.Generation.DefaultCount {
		return fmt.Errorf("generation.max_count(%d) 小于 default_count(%d)", cfg.Generation.MaxCount, cfg.Generation.DefaultCount)
	}
	if cfg.Generation.DefaultScore < 0 || cfg.Generation.DefaultScore > 1 {
		return fmt.Errorf("generation.default_score 必须在 [0,1] 区间内")
	}
	if cfg.Staging.MaxSessions < 0 {
		return fmt.Errorf("staging.max_sessions 不能为负数")
	}

	return nil
}
