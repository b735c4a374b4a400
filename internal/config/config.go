package config

import (
	"fmt"
	"os"
	"time"

	"fitrank/internal/errors"
	"fitrank/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	VectorDB    VectorDBConfig    `mapstructure:"vector_db"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Ranking     RankingConfig     `mapstructure:"ranking"`
	Interaction InteractionConfig `mapstructure:"interaction"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"`
	Path            string        `mapstructure:"path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// VectorDBConfig 向量数据库配置
type VectorDBConfig struct {
	Type       string        `mapstructure:"type"` // chroma | memory
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig 向量化服务配置
type EmbeddingConfig struct {
	APIBase         string        `mapstructure:"api_base"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Dimension       int           `mapstructure:"dimension"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryTimes      int           `mapstructure:"retry_times"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Strategy        string        `mapstructure:"strategy"` // unified | weighted
	QueryWeight     float64       `mapstructure:"query_weight"`
	MaxUnifiedChars int           `mapstructure:"max_unified_chars"`
}

// CacheConfig 用户画像向量缓存配置
type CacheConfig struct {
	Enabled  bool        `mapstructure:"enabled"`
	Type     string      `mapstructure:"type"` // memory | redis
	MaxItems int         `mapstructure:"max_items"`
	Redis    RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis连接配置
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RankingConfig 检索与排序配置
type RankingConfig struct {
	CandidateMultiplier int      `mapstructure:"candidate_multiplier"`
	// 最低分为指针，nil 表示未配置，0 是合法取值
	DefaultMinScore     *float64 `mapstructure:"default_min_score"`
	SimilarMinScore     *float64 `mapstructure:"similar_min_score"`
	LookbackDays        int      `mapstructure:"lookback_days"`
	DefaultLimit        int      `mapstructure:"default_limit"`
	MaxLimit            int      `mapstructure:"max_limit"`
	SimilarDefaultLimit int      `mapstructure:"similar_default_limit"`
	SimilarMaxLimit     int      `mapstructure:"similar_max_limit"`
	MinCategoryGap      int      `mapstructure:"min_category_gap"`
	Backfill            bool     `mapstructure:"backfill"`
}

// InteractionConfig 交互日志配置
type InteractionConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

var (
	globalConfig *Config
	configLogger = logger.NewLogger("config")
)

// setDefaults 默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "data/fitrank.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("vector_db.type", "chroma")
	v.SetDefault("vector_db.host", "localhost")
	v.SetDefault("vector_db.port", 8000)
	v.SetDefault("vector_db.collection", "products")
	v.SetDefault("vector_db.timeout", 10*time.Second)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.retry_times", 3)
	v.SetDefault("embedding.retry_delay", time.Second)
	v.SetDefault("embedding.strategy", "unified")
	v.SetDefault("embedding.query_weight", 0.7)
	v.SetDefault("embedding.max_unified_chars", 6000)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.key_prefix", "fitrank:profile_vec")
	v.SetDefault("cache.redis.timeout", 2*time.Second)

	v.SetDefault("ranking.candidate_multiplier", 10)
	v.SetDefault("ranking.default_min_score", 0.3)
	v.SetDefault("ranking.similar_min_score", 0.5)
	v.SetDefault("ranking.lookback_days", 90)
	v.SetDefault("ranking.default_limit", 10)
	v.SetDefault("ranking.max_limit", 50)
	v.SetDefault("ranking.similar_default_limit", 5)
	v.SetDefault("ranking.similar_max_limit", 20)
	v.SetDefault("ranking.min_category_gap", 2)
	v.SetDefault("ranking.backfill", true)

	v.SetDefault("interaction.write_timeout", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置环境变量前缀
	v.SetEnvPrefix("FITRANK")
	v.AutomaticEnv()

	// 绑定特定的环境变量
	v.BindEnv("embedding.api_key", "FITRANK_EMBEDDING_API_KEY")
	v.BindEnv("database.path", "FITRANK_DATABASE_PATH")
	v.BindEnv("cache.redis.addr", "FITRANK_REDIS_ADDR")
	v.BindEnv("cache.redis.password", "FITRANK_REDIS_PASSWORD")

	configLogger.Info("Loading configuration", logger.Fields{
		"config_path": configPath,
	})

	if err := v.ReadInConfig(); err != nil {
		cfgErr := errors.ErrConfigInvalid("config_file", err.Error()).
			WithCause(err).
			WithContext(map[string]interface{}{
				"config_path": configPath,
			})
		configLogger.LogFitrankError(cfgErr, "Failed to read configuration file")
		return nil, cfgErr
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		cfgErr := errors.ErrConfigInvalid("config_unmarshal", err.Error()).
			WithCause(err)
		configLogger.LogFitrankError(cfgErr, "Failed to unmarshal configuration")
		return nil, cfgErr
	}

	processEnvironmentOverrides(config)

	if err := validateConfig(config); err != nil {
		configLogger.LogFitrankError(err, "Configuration validation failed")
		return nil, err
	}

	globalConfig = config
	configLogger.Info("Configuration loaded successfully", logger.Fields{
		"server_port":        config.Server.Port,
		"vector_db_type":     config.VectorDB.Type,
		"embedding_strategy": config.Embedding.Strategy,
		"cache_type":         config.Cache.Type,
		"cache_enabled":      config.Cache.Enabled,
	})

	return config, nil
}

// Default 返回仅含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	config := &Config{}
	// 默认值都能直接解码，忽略错误
	_ = v.Unmarshal(config)
	return config
}

// InitializeForTest 直接注入配置，跳过文件加载
func InitializeForTest(config *Config) {
	globalConfig = config
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) *errors.FitrankError {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return errors.ErrConfigInvalid("server.port", "must be between 1 and 65535")
	}

	if config.Server.Mode != "development" && config.Server.Mode != "production" {
		return errors.ErrConfigInvalid("server.mode", "must be 'development' or 'production'")
	}

	if config.Database.Type != "sqlite" {
		return errors.ErrConfigInvalid("database.type", "only 'sqlite' is supported")
	}

	if config.Database.Path == "" {
		return errors.ErrConfigMissing("database.path")
	}

	switch config.VectorDB.Type {
	case "chroma":
		if config.VectorDB.Collection == "" {
			return errors.ErrConfigMissing("vector_db.collection")
		}
	case "memory":
	default:
		return errors.ErrConfigInvalid("vector_db.type", "must be 'chroma' or 'memory'")
	}

	if config.Embedding.APIBase == "" {
		return errors.ErrConfigMissing("embedding.api_base")
	}

	if config.Embedding.Model == "" {
		return errors.ErrConfigMissing("embedding.model")
	}

	if config.Embedding.Dimension <= 0 {
		return errors.ErrConfigInvalid("embedding.dimension", "must be greater than 0")
	}

	if config.Embedding.Strategy != "unified" && config.Embedding.Strategy != "weighted" {
		return errors.ErrConfigInvalid("embedding.strategy", "must be 'unified' or 'weighted'")
	}

	if config.Embedding.QueryWeight <= 0 || config.Embedding.QueryWeight > 1 {
		return errors.ErrConfigInvalid("embedding.query_weight", "must be in (0, 1]")
	}

	if config.Cache.Enabled {
		if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
			return errors.ErrConfigInvalid("cache.type", "must be 'memory' or 'redis'")
		}
		if config.Cache.MaxItems <= 0 {
			return errors.ErrConfigInvalid("cache.max_items", "must be greater than 0")
		}
		if config.Cache.Type == "redis" && config.Cache.Redis.Addr == "" {
			return errors.ErrConfigMissing("cache.redis.addr")
		}
	}

	if config.Ranking.CandidateMultiplier < 1 {
		return errors.ErrConfigInvalid("ranking.candidate_multiplier", "must be at least 1")
	}

	if !scoreInRange(config.Ranking.DefaultMinScore) {
		return errors.ErrConfigInvalid("ranking.default_min_score", "must be between 0 and 1")
	}

	if !scoreInRange(config.Ranking.SimilarMinScore) {
		return errors.ErrConfigInvalid("ranking.similar_min_score", "must be between 0 and 1")
	}

	if config.Ranking.LookbackDays <= 0 {
		return errors.ErrConfigInvalid("ranking.lookback_days", "must be greater than 0")
	}

	if config.Ranking.DefaultLimit < 1 || config.Ranking.DefaultLimit > config.Ranking.MaxLimit {
		return errors.ErrConfigInvalid("ranking.default_limit", "must be between 1 and ranking.max_limit")
	}

	if config.Ranking.SimilarDefaultLimit < 1 || config.Ranking.SimilarDefaultLimit > config.Ranking.SimilarMaxLimit {
		return errors.ErrConfigInvalid("ranking.similar_default_limit", "must be between 1 and ranking.similar_max_limit")
	}

	if config.Ranking.MinCategoryGap < 1 {
		return errors.ErrConfigInvalid("ranking.min_category_gap", "must be at least 1")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	isValidLevel := false
	for _, level := range validLogLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return errors.ErrConfigInvalid("logging.level", "must be one of: debug, info, warn, error")
	}

	return nil
}

// processEnvironmentOverrides 处理环境变量覆盖
func processEnvironmentOverrides(config *Config) {
	if apiKey := os.Getenv("FITRANK_EMBEDDING_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
		configLogger.Debug("Embedding API key loaded from environment variable")
	}

	if dbPath := os.Getenv("FITRANK_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
		configLogger.Debug("Database path loaded from environment variable")
	}

	if addr := os.Getenv("FITRANK_REDIS_ADDR"); addr != "" {
		config.Cache.Redis.Addr = addr
		configLogger.Debug("Redis address loaded from environment variable")
	}

	if config.Embedding.APIKey == "" {
		configLogger.Warn("Embedding API key is empty - requests to the provider may be rejected")
	}
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		configLogger.Error("Configuration not loaded", logger.Fields{
			"error": "globalConfig is nil",
		})
		return nil
	}
	return globalConfig
}

func scoreInRange(score *float64) bool {
	return score == nil || (*score >= 0 && *score <= 1)
}

// IsProduction 检查是否为生产环境
func IsProduction() bool {
	if globalConfig == nil {
		return false
	}
	return globalConfig.Server.Mode == "production"
}

// GetServerAddress 获取服务器地址
func GetServerAddress() string {
	if globalConfig == nil {
		return ":8080"
	}
	return fmt.Sprintf("%s:%d", globalConfig.Server.Host, globalConfig.Server.Port)
}
