package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string
	Telemetry    TelemetryConfig

	// ServiceBaseURL is the public base of this service, ending with a slash.
	ServiceBaseURL string
	// SourceCountry is the short country code embedded in Telr cart identifiers.
	SourceCountry string
	Currency      string
	SnowflakeNode int64

	GatewayTimeout time.Duration
	Payment        PaymentConfig
	Telr           TelrConfig
	Noon           NoonConfig

	Kafka KafkaConfig
	Redis RedisConfig
	Slack SlackConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// TelemetryConfig tunes logs, traces and the SQL log.
type TelemetryConfig struct {
	LogLevel       string
	LogFormat      string
	TracingEnabled bool
	OTLPProtocol   string
	SamplingRatio  float64
	// SlowQuery is the duration above which a SQL statement is logged at warn.
	SlowQuery time.Duration
}

type TelrConfig struct {
	HostedURL      string
	StoreID        int64
	AuthKey        string
	Secret         string
	TestMode       bool
	MerchantID     string
	APIKey         string
	TransactionURL string
	AgreementURL   string
}

type NoonConfig struct {
	BaseURL      string
	AuthKey      string
	Mode         string
	Secret       string
	ReturnURL    string
	StyleProfile string
	// MaxRetries bounds extra attempts at handling one webhook delivery.
	MaxRetries int
}

type KafkaConfig struct {
	Enabled            bool
	Brokers            []string
	GroupID            string
	PurchaseOrderTopic string
	TransactionTopic   string
	WarehouseTopic     string
	NotificationTopic  string

	ReferralTopic       string
	RewardsBalanceTopic string
	ConsultationTopic   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type SlackConfig struct {
	BaseURL string
	Token   string
	Channel string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getenv("APP_SERVICE", "paylink"),
		AppVersion:     getenv("APP_VERSION", "0.1.0"),
		Environment:    getenv("ENVIRONMENT", "development"),
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:   getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		Telemetry: TelemetryConfig{
			LogLevel:       strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:      strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			TracingEnabled: getenvBool("OTEL_ENABLED", false),
			OTLPProtocol:   strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")))),
			SamplingRatio:  getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			SlowQuery:      time.Duration(getenvInt64("DATABASE_SLOW_QUERY_MS", 200)) * time.Millisecond,
		},
		ServiceBaseURL: withTrailingSlash(getenv("SERVICE_BASE_URL", "http://localhost:8080/")),
		SourceCountry:  strings.ToLower(getenv("SOURCE_COUNTRY", "ae")),
		Currency:       strings.ToUpper(getenv("PAYMENT_CURRENCY", "AED")),
		SnowflakeNode:  getenvInt64("SNOWFLAKE_NODE", 1),
		GatewayTimeout: time.Duration(getenvInt64("GATEWAY_TIMEOUT_SECONDS", 15)) * time.Second,
		Payment: PaymentConfig{
			DefaultGateway: strings.ToUpper(getenv("PAYMENT_DEFAULT_GATEWAY", "TELR")),
			ExpiryDays:     int(getenvInt64("PAYMENT_EXPIRY_DAYS", 10)),
			Pages: ReturnPages{
				Authorised: getenv("PAYMENT_PAGE_AUTHORISED", ""),
				Declined:   getenv("PAYMENT_PAGE_DECLINED", ""),
				Cancelled:  getenv("PAYMENT_PAGE_CANCELLED", ""),
			},
			SubscriptionPages: ReturnPages{
				Authorised: getenv("PAYMENT_SUBSCRIPTION_PAGE_AUTHORISED", ""),
				Declined:   getenv("PAYMENT_SUBSCRIPTION_PAGE_DECLINED", ""),
				Cancelled:  getenv("PAYMENT_SUBSCRIPTION_PAGE_CANCELLED", ""),
			},
		},
		Telr: TelrConfig{
			HostedURL:      getenv("TELR_HOSTED_URL", "https://secure.telr.com/gateway/order.json"),
			StoreID:        getenvInt64("TELR_STORE_ID", 0),
			AuthKey:        strings.TrimSpace(getenv("TELR_AUTH_KEY", "")),
			Secret:         strings.TrimSpace(getenv("TELR_SECRET", "")),
			TestMode:       getenvBool("TELR_TEST_MODE", true),
			MerchantID:     strings.TrimSpace(getenv("TELR_MERCHANT_ID", "")),
			APIKey:         strings.TrimSpace(getenv("TELR_API_KEY", "")),
			TransactionURL: getenv("TELR_TRANSACTION_URL", "https://secure.innovatepayments.com/tools/api/xml/transaction/%s"),
			AgreementURL:   getenv("TELR_AGREEMENT_URL", "https://secure.innovatepayments.com/tools/api/xml/agreement/%s"),
		},
		Noon: NoonConfig{
			BaseURL:      withTrailingSlash(getenv("NOON_BASE_URL", "https://api-test.noonpayments.com/payment/v1/")),
			AuthKey:      strings.TrimSpace(getenv("NOON_AUTH_KEY", "")),
			Mode:         getenv("NOON_MODE", "Test"),
			Secret:       strings.TrimSpace(getenv("NOON_SECRET", "")),
			ReturnURL:    getenv("NOON_RETURN_URL", ""),
			StyleProfile: getenv("NOON_STYLE_PROFILE", ""),
			MaxRetries:   int(getenvInt64("NOON_WEBHOOK_MAX_RETRIES", 3)),
		},
		Kafka: KafkaConfig{
			Enabled:            getenvBool("KAFKA_ENABLED", false),
			Brokers:            splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			GroupID:            getenv("KAFKA_GROUP_ID", "payment_group_id"),
			PurchaseOrderTopic: getenv("KAFKA_PURCHASE_ORDER_TOPIC", "payment_purchase_order"),
			TransactionTopic:   getenv("KAFKA_TRANSACTION_TOPIC", "payment-transaction"),
			WarehouseTopic:     getenv("KAFKA_WAREHOUSE_TOPIC", "payment_event"),
			NotificationTopic:  getenv("KAFKA_NOTIFICATION_TOPIC", "notifications_events"),

			ReferralTopic:       getenv("KAFKA_REFERRAL_TOPIC", "referral"),
			RewardsBalanceTopic: getenv("KAFKA_REWARDS_BALANCE_TOPIC", "rewards_balance"),
			ConsultationTopic:   getenv("KAFKA_CONSULTATION_TOPIC", "consultation"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Slack: SlackConfig{
			BaseURL: getenv("SLACK_BASE_URL", "https://slack.com/api/chat.postMessage"),
			Token:   strings.TrimSpace(getenv("SLACK_TOKEN", "")),
			Channel: getenv("SLACK_CHANNEL", ""),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "paylink"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func withTrailingSlash(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasSuffix(raw, "/") {
		return raw
	}
	return raw + "/"
}
