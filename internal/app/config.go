package app

import (
	"time"

	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/utils"
)

type Config struct {
	Env            string
	HTTPAddr       string
	StorageDriver  string
	RedisAddr      string
	ContentAPIBase string
	ContentTimeout time.Duration
	JWTSecretKey   string
	ViewsPath      string

	// DefaultBudget applies when a request carries no budget of its own.
	// Zero disables the watchdog for those requests.
	DefaultBudget time.Duration
	SafetyMargin  time.Duration

	QAEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	contentTimeoutMs := utils.GetEnvAsInt("CONTENT_TIMEOUT_MS", 3000, log)
	defaultBudgetMs := utils.GetEnvAsInt("DEFAULT_BUDGET_MS", 0, log)
	safetyMarginMs := utils.GetEnvAsInt("SAFETY_MARGIN_MS", 500, log)
	return Config{
		Env:            utils.GetEnv("APP_ENV", "local", log),
		HTTPAddr:       utils.GetEnv("HTTP_ADDR", ":8080", log),
		StorageDriver:  utils.GetEnv("STORAGE_DRIVER", "memory", log),
		RedisAddr:      utils.GetEnv("REDIS_ADDR", "", log),
		ContentAPIBase: utils.GetEnv("CONTENT_API_BASE", "", log),
		ContentTimeout: time.Duration(contentTimeoutMs) * time.Millisecond,
		JWTSecretKey:   utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		ViewsPath:      utils.GetEnv("VIEWS_PATH", "", log),
		DefaultBudget:  time.Duration(defaultBudgetMs) * time.Millisecond,
		SafetyMargin:   time.Duration(safetyMarginMs) * time.Millisecond,
		QAEnabled:      utils.GetEnvAsBool("QA_ENABLED", false, log),
	}
}
