package config

import (
	"os"      // For environment variables
	"strconv" // For string to number conversion
	"strings" // For list parsing

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	IsProd     bool   // Is production environment
	DBDriver   string // Database driver: mysql or sqlite
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	SQLitePath string // SQLite file used when DBDriver is sqlite
	JWTSecret  string // JWT secret key
	JWTTTL     int    // JWT lifetime in hours
	RedisAddr  string // Redis server address, empty disables caching
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number

	CommissionRate     float64 // Platform share of the order subtotal
	DefaultDeliveryFee float64 // Used when a restaurant has no delivery fee
	DefaultCurrency    string  // Currency sent to the payment gateway
	TransactionPrefix  string  // Prefix of gateway transaction ids

	CinetPayAPIKey  string // Payment gateway API key
	CinetPaySiteID  string // Payment gateway site id
	CinetPayBaseURL string // Payment gateway base URL
	FrontendURL     string // Used for payment return URLs
	BackendURL      string // Used for payment notify (webhook) URLs

	NotifyDriver     string // log, whatsapp or amqp
	WhatsAppAPIURL   string // WhatsApp Business API base URL
	WhatsAppAPIToken string // WhatsApp Business API token
	RabbitMQURL      string // AMQP broker URL for the amqp notify driver
	NotifyExchange   string // Fanout exchange receiving notifications

	CORSOrigins []string // Allowed CORS origins
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),
		IsProd:     os.Getenv("IS_PROD") == "true" || os.Getenv("APP_ENV") == "production",
		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "kolia"),
		SQLitePath: getEnv("SQLITE_PATH", "kolia.db"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTTTL:     getEnvInt("JWT_TTL_HOURS", 168),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
		RedisPass:  os.Getenv("REDIS_PASS"),
		RedisDB:    getEnvInt("REDIS_DB", 0),

		CommissionRate:     getEnvFloat("COMMISSION_RATE", 0.15),
		DefaultDeliveryFee: getEnvFloat("DEFAULT_DELIVERY_FEE", 5000),
		DefaultCurrency:    getEnv("DEFAULT_CURRENCY", "CDF"),
		TransactionPrefix:  getEnv("TRANSACTION_PREFIX", "KOLIA"),

		CinetPayAPIKey:  os.Getenv("CINETPAY_API_KEY"),
		CinetPaySiteID:  os.Getenv("CINETPAY_SITE_ID"),
		CinetPayBaseURL: getEnv("CINETPAY_BASE_URL", "https://api-checkout.cinetpay.com"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
		BackendURL:      getEnv("BACKEND_URL", "http://localhost:8080"),

		NotifyDriver:     getEnv("NOTIFY_DRIVER", "log"),
		WhatsAppAPIURL:   os.Getenv("WHATSAPP_API_URL"),
		WhatsAppAPIToken: os.Getenv("WHATSAPP_API_TOKEN"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		NotifyExchange:   getEnv("NOTIFY_EXCHANGE", "notifications_fanout"),

		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
	}
}

// DSN returns the MySQL Data Source Name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
