package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort string
	Debug      bool

	// Database，为空时不启用归档
	DatabaseURL string

	// Redis，地址为空时不发布事件
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// 通知端点
	RerouteWebhookURL     string
	RerouteAPIToken       string
	MaintenanceWebhookURL string
	MaintenanceAPIToken   string
	DemoDriverPhone       string

	// 接收端转发的下游工作流，为空时只登记不转发
	MaintenanceForwardURL string
	RerouteForwardURL     string

	// 重试
	NotifyMaxAttempts    int
	NotifyBackoffInitial time.Duration
	NotifyTimeout        time.Duration

	// 智能顾问，Key 为空时只使用规则
	AdvisorAPIKey  string
	AdvisorBaseURL string
	AdvisorModel   string
	AdvisorTimeout time.Duration

	// 置信度
	ConfidenceScoreHigh   int
	ConfidenceScoreMedium int
	ConfidenceScoreLow    int

	RerouteConfidenceHigh    float64
	RerouteConfidenceMedium  float64
	RerouteConfidenceLow     float64
	RerouteConfidenceDefault float64

	// 决策日志默认窗口
	DecisionLogView int
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:               getEnv("PORT", "5000"),
		Debug:                    getEnvBool("DEBUG", false),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisAddr:                getEnv("REDIS_ADDR", ""),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		RedisDB:                  getEnvInt("REDIS_DB", 0),
		RerouteWebhookURL:        getEnv("REROUTE_WEBHOOK_URL", ""),
		RerouteAPIToken:          getEnv("REROUTE_API_TOKEN", ""),
		MaintenanceWebhookURL:    getEnv("MAINTENANCE_WEBHOOK_URL", ""),
		MaintenanceAPIToken:      getEnv("MAINTENANCE_API_TOKEN", ""),
		DemoDriverPhone:          getEnv("DEMO_DRIVER_PHONE", ""),
		MaintenanceForwardURL:    getEnv("MAINTENANCE_FORWARD_URL", ""),
		RerouteForwardURL:        getEnv("REROUTE_FORWARD_URL", ""),
		NotifyMaxAttempts:        getEnvInt("NOTIFY_MAX_ATTEMPTS", 3),
		NotifyBackoffInitial:     getEnvDuration("NOTIFY_BACKOFF_INITIAL", time.Second),
		NotifyTimeout:            getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		AdvisorAPIKey:            getEnv("ADVISOR_API_KEY", ""),
		AdvisorBaseURL:           getEnv("ADVISOR_BASE_URL", ""),
		AdvisorModel:             getEnv("ADVISOR_MODEL", ""),
		AdvisorTimeout:           getEnvDuration("ADVISOR_TIMEOUT", 15*time.Second),
		ConfidenceScoreHigh:      getEnvInt("CONFIDENCE_SCORE_HIGH", 90),
		ConfidenceScoreMedium:    getEnvInt("CONFIDENCE_SCORE_MEDIUM", 70),
		ConfidenceScoreLow:       getEnvInt("CONFIDENCE_SCORE_LOW", 50),
		RerouteConfidenceHigh:    getEnvFloat("REROUTE_CONFIDENCE_HIGH", 0.89),
		RerouteConfidenceMedium:  getEnvFloat("REROUTE_CONFIDENCE_MEDIUM", 0.72),
		RerouteConfidenceLow:     getEnvFloat("REROUTE_CONFIDENCE_LOW", 0.75),
		RerouteConfidenceDefault: getEnvFloat("REROUTE_CONFIDENCE_DEFAULT", 0.75),
		DecisionLogView:          getEnvInt("DECISION_LOG_VIEW", 50),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
