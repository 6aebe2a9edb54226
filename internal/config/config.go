package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"

	StateBackendFile   = "file"
	StateBackendSQLite = "sqlite"
	StateBackendMySQL  = "mysql"

	defaultAlgodURL        = "https://mainnet-api.algonode.cloud"
	defaultAlgodTestnetURL = "https://testnet-api.algonode.cloud"
	defaultMagicLiteral    = "0x53f02a40"
)

type Config struct {
	Network       string `validate:"oneof=mainnet testnet"`
	AlgodURL      string `validate:"required,url"`
	AlgodToken    string
	VerifierURL   string `validate:"required_if=ScanEnabled true,omitempty,url"`
	VerifierToken string

	StartRound    uint64
	ScanRounds    uint64
	Follow        bool
	PollInterval  time.Duration `validate:"gt=0"`
	HTTPTimeout   time.Duration `validate:"gt=0"`
	VerifyWorkers int           `validate:"min=1,max=64"`
	MagicLiteral  string        `validate:"required"`
	ScanInner     bool
	ScanEnabled   bool
	ReportEnabled bool

	StateBackend string `validate:"oneof=file sqlite mysql"`
	StateFile    string `validate:"required"`
	OutputDir    string `validate:"required"`
	SQLitePath   string
	DBDSN        string `validate:"required_if=StateBackend mysql"`
	RedisAddr    string

	KafkaBrokers     []string
	KafkaTopicPrefix string
	NatsURL          string

	HTTPAddr          string
	OtelEndpoint      string
	ClassifierCacheMB int `validate:"min=1"`

	LogLevel      string `validate:"omitempty,oneof=debug info warn warning error"`
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

// Layered looks keys up in each source in turn; the first hit wins.
type Layered []EnvSource

func (l Layered) Lookup(key string) (string, bool) {
	for _, source := range l {
		if source == nil {
			continue
		}
		if value, ok := source.Lookup(key); ok {
			return value, true
		}
	}
	return "", false
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	network := strings.ToLower(stringEnv(source, "NETWORK", NetworkMainnet))

	// the testnet pair is only consulted when NETWORK=testnet
	algodURL := stringEnv(source, "ALGOD_URL", defaultAlgodURL)
	verifierURL := stringEnv(source, "VERIFIER_URL", "")
	if network == NetworkTestnet {
		algodURL = stringEnv(source, "ALGOD_TESTNET_URL", defaultAlgodTestnetURL)
		verifierURL = stringEnv(source, "VERIFIER_TESTNET_URL", "")
	}

	startRound, err := parseUintEnv(source, "START_ROUND", 1)
	if err != nil {
		return Config{}, err
	}
	scanRounds, err := parseUintEnv(source, "SCAN_ROUNDS", 1)
	if err != nil {
		return Config{}, err
	}
	verifyWorkers, err := parseUintEnv(source, "VERIFY_WORKERS", 4)
	if err != nil {
		return Config{}, err
	}
	cacheMB, err := parseUintEnv(source, "CLASSIFIER_CACHE_MB", 16)
	if err != nil {
		return Config{}, err
	}
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	follow, err := parseBoolEnv(source, "FOLLOW", false)
	if err != nil {
		return Config{}, err
	}
	scanInner, err := parseBoolEnv(source, "SCAN_INNER_TXNS", false)
	if err != nil {
		return Config{}, err
	}
	scanEnabled, err := parseBoolEnv(source, "SCAN_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	reportEnabled, err := parseBoolEnv(source, "REPORT_ENABLED", true)
	if err != nil {
		return Config{}, err
	}

	pollInterval, err := parseDurationEnv(source, "POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	httpTimeout, err := parseDurationEnv(source, "HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}

	kafkaBrokers, err := parseList(source, "KAFKA_BROKERS")
	if err != nil {
		return Config{}, err
	}

	outputDir := stringEnv(source, "OUTPUT_DIR", "rounds")

	cfg := Config{
		Network:           network,
		AlgodURL:          algodURL,
		AlgodToken:        stringEnv(source, "ALGOD_TOKEN", ""),
		VerifierURL:       verifierURL,
		VerifierToken:     stringEnv(source, "VERIFIER_TOKEN", ""),
		StartRound:        startRound,
		ScanRounds:        scanRounds,
		Follow:            follow,
		PollInterval:      pollInterval,
		HTTPTimeout:       httpTimeout,
		VerifyWorkers:     int(verifyWorkers),
		MagicLiteral:      stringEnv(source, "ARC72_MAGIC", defaultMagicLiteral),
		ScanInner:         scanInner,
		ScanEnabled:       scanEnabled,
		ReportEnabled:     reportEnabled,
		StateBackend:      strings.ToLower(stringEnv(source, "STATE_BACKEND", StateBackendFile)),
		StateFile:         stringEnv(source, "STATE_FILE", "round.txt"),
		OutputDir:         outputDir,
		SQLitePath:        stringEnv(source, "SQLITE_PATH", ""),
		DBDSN:             stringEnv(source, "DB_DSN", ""),
		RedisAddr:         stringEnv(source, "REDIS_ADDR", ""),
		KafkaBrokers:      kafkaBrokers,
		KafkaTopicPrefix:  stringEnv(source, "KAFKA_TOPIC_PREFIX", "arc72-transfers"),
		NatsURL:           stringEnv(source, "NATS_URL", ""),
		HTTPAddr:          stringEnv(source, "HTTP_ADDR", ""),
		OtelEndpoint:      stringEnv(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ClassifierCacheMB: int(cacheMB),
		LogLevel:          strings.ToLower(stringEnv(source, "LOG_LEVEL", "info")),
		LogFile:           stringEnv(source, "LOG_FILE", ""),
		LogMaxSizeMB:      int(logMaxSize),
		LogMaxBackups:     int(logMaxBackups),
	}
	if cfg.StateBackend == StateBackendSQLite && cfg.SQLitePath == "" {
		cfg.SQLitePath = "arc72scan.db"
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the struct tags and reports every offending env key.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s (%s)", envKey(cfg, fe.StructField()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, ", "))
}

func envKey(cfg Config, field string) string {
	switch field {
	case "AlgodURL":
		if cfg.Network == NetworkTestnet {
			return "ALGOD_TESTNET_URL"
		}
		return "ALGOD_URL"
	case "VerifierURL":
		if cfg.Network == NetworkTestnet {
			return "VERIFIER_TESTNET_URL"
		}
		return "VERIFIER_URL"
	case "MagicLiteral":
		return "ARC72_MAGIC"
	case "DBDSN":
		return "DB_DSN"
	case "ClassifierCacheMB":
		return "CLASSIFIER_CACHE_MB"
	case "HTTPTimeout":
		return "HTTP_TIMEOUT"
	}
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func stringEnv(source EnvSource, key string, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseBoolEnv(source EnvSource, key string, defaultValue bool) (bool, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseList(source EnvSource, key string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s has no entries", key)
	}
	return values, nil
}
