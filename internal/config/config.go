package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listenAddr"`
	TCPAddr    string `yaml:"tcpAddr"`
	RedisAddr  string `yaml:"redisAddr"`
	RedisDB    int    `yaml:"redisDB"`
	RedisPass  string `yaml:"redisPass"`
	JWTSecret  string `yaml:"jwtSecret"`

	// 关系库：mysql（线上）或 sqlite3（本地）
	DBDriver string `yaml:"dbDriver"`
	DBDSN    string `yaml:"dbDSN"`
	// 启动时建表；users/follows 由其他服务维护，仅本地需要一并创建
	AutoMigrate       bool `yaml:"autoMigrate"`
	MigrateCollabTabs bool `yaml:"migrateCollaboratorTables"`

	// 消息日志存储：mysql 或 mongodb
	MessageDB string `yaml:"messageDB"`
	MongoURI  string `yaml:"mongoURI"`

	// Kafka 配置（可选）
	KafkaBrokers      string `yaml:"kafkaBrokers"` // 逗号分隔
	KafkaMessageTopic string `yaml:"kafkaMessageTopic"`
	KafkaRepairGroup  string `yaml:"kafkaRepairGroup"`

	// 私信开关与限制
	DMEnabled            bool          `yaml:"dmEnabled"`
	AllowStrangerMessage bool          `yaml:"allowStrangerMessage"` // 系统级，与用户设置取与
	DefaultAllowStranger bool          `yaml:"defaultAllowStranger"` // 用户未设置时的默认值
	MaxContentLength     int           `yaml:"maxContentLength"`
	PreviewLength        int           `yaml:"previewLength"`
	WithdrawWindow       time.Duration `yaml:"withdrawWindow"`
	SendQPS              int           `yaml:"sendQPS"`
	SendBurst            int           `yaml:"sendBurst"`
	RelationCacheTTL     time.Duration `yaml:"relationCacheTTL"`

	// 会话行对账
	RepairInterval    time.Duration `yaml:"repairInterval"`
	RepairLookback    time.Duration `yaml:"repairLookback"`
	RepairLimit       int           `yaml:"repairLimit"`
	RepairChunkSize   int           `yaml:"repairChunkSize"`
	RepairConcurrency int           `yaml:"repairConcurrency"`
	RepairRetry       int           `yaml:"repairRetry"`

	// 指标与日志
	EnableMetrics bool   `yaml:"enableMetrics"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"` // json|text

	// 媒体公网地址
	MediaPublicHost string `yaml:"mediaPublicHost"` // 例如 https://bucket.oss-cn-hangzhou.aliyuncs.com
	MediaPrefix     string `yaml:"mediaPrefix"`     // 目录前缀，如 uploads/
}

// Default 默认配置
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		TCPAddr:    "",
		RedisAddr:  "127.0.0.1:6379",
		JWTSecret:  "change-me-in-prod",

		DBDriver:          "mysql",
		DBDSN:             "root:password@tcp(127.0.0.1:3306)/godm?parseTime=true&loc=UTC&charset=utf8mb4",
		AutoMigrate:       true,
		MigrateCollabTabs: false,

		MessageDB: "mysql",
		MongoURI:  "mongodb://127.0.0.1:27017/godm",

		KafkaBrokers:      "",
		KafkaMessageTopic: "dm-message-events",
		KafkaRepairGroup:  "dm-view-repair",

		DMEnabled:            true,
		AllowStrangerMessage: true,
		DefaultAllowStranger: true,
		MaxContentLength:     1000,
		PreviewLength:        100,
		WithdrawWindow:       2 * time.Minute,
		SendQPS:              5,
		SendBurst:            10,
		RelationCacheTTL:     time.Minute,

		RepairInterval:    5 * time.Minute,
		RepairLookback:    24 * time.Hour,
		RepairLimit:       5000,
		RepairChunkSize:   200,
		RepairConcurrency: 4,
		RepairRetry:       2,

		EnableMetrics: true,
		LogLevel:      "info",
		LogFormat:     "json",

		MediaPrefix: "uploads/",
	}
}

// Load 默认值 → YAML 文件 → 环境变量，后者覆盖前者
func Load() *Config {
	cfg := Default()

	configPath := getEnv("DM_CONFIG_FILE", getEnv("CONFIG_FILE", "config.yml"))
	if st, err := os.Stat(configPath); err == nil && !st.IsDir() {
		if data, err2 := os.ReadFile(configPath); err2 == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	setStr := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(env string, dst *bool) {
		if v := os.Getenv(env); v != "" {
			*dst = parseBool(v)
		}
	}
	setDur := func(env string, dst *time.Duration) {
		if v := os.Getenv(env); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setStr("DM_LISTEN_ADDR", &cfg.ListenAddr)
	setStr("DM_TCP_ADDR", &cfg.TCPAddr)
	setStr("DM_REDIS_ADDR", &cfg.RedisAddr)
	setStr("DM_REDIS_PASS", &cfg.RedisPass)
	setInt("DM_REDIS_DB", &cfg.RedisDB)
	setStr("DM_JWT_SECRET", &cfg.JWTSecret)

	setStr("DM_DB_DRIVER", &cfg.DBDriver)
	setStr("DM_DB_DSN", &cfg.DBDSN)
	setBool("DM_AUTO_MIGRATE", &cfg.AutoMigrate)
	setBool("DM_MIGRATE_COLLABORATOR_TABLES", &cfg.MigrateCollabTabs)

	setStr("DM_MESSAGE_DB", &cfg.MessageDB)
	setStr("DM_MONGO_URI", &cfg.MongoURI)

	setStr("DM_KAFKA_BROKERS", &cfg.KafkaBrokers)
	setStr("DM_KAFKA_MESSAGE_TOPIC", &cfg.KafkaMessageTopic)
	setStr("DM_KAFKA_REPAIR_GROUP", &cfg.KafkaRepairGroup)

	setBool("DM_ENABLED", &cfg.DMEnabled)
	setBool("DM_ALLOW_STRANGER_MESSAGE", &cfg.AllowStrangerMessage)
	setBool("DM_DEFAULT_ALLOW_STRANGER", &cfg.DefaultAllowStranger)
	setInt("DM_MAX_CONTENT_LENGTH", &cfg.MaxContentLength)
	setInt("DM_PREVIEW_LENGTH", &cfg.PreviewLength)
	setDur("DM_WITHDRAW_WINDOW", &cfg.WithdrawWindow)
	setInt("DM_SEND_QPS", &cfg.SendQPS)
	setInt("DM_SEND_BURST", &cfg.SendBurst)
	setDur("DM_RELATION_CACHE_TTL", &cfg.RelationCacheTTL)

	setDur("DM_REPAIR_INTERVAL", &cfg.RepairInterval)
	setDur("DM_REPAIR_LOOKBACK", &cfg.RepairLookback)
	setInt("DM_REPAIR_LIMIT", &cfg.RepairLimit)
	setInt("DM_REPAIR_CHUNK_SIZE", &cfg.RepairChunkSize)
	setInt("DM_REPAIR_CONCURRENCY", &cfg.RepairConcurrency)
	setInt("DM_REPAIR_RETRY", &cfg.RepairRetry)

	setBool("DM_ENABLE_METRICS", &cfg.EnableMetrics)
	setStr("DM_LOG_LEVEL", &cfg.LogLevel)
	setStr("DM_LOG_FORMAT", &cfg.LogFormat)

	setStr("DM_MEDIA_PUBLIC_HOST", &cfg.MediaPublicHost)
	setStr("DM_MEDIA_PREFIX", &cfg.MediaPrefix)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
