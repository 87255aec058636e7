// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Prefix das variáveis de ambiente (ORDERS_PORT, ORDERS_CACHE_TTL, ...).
const Prefix = "ORDERS"

// Config reúne a configuração do serviço de pedidos.
type Config struct {
	Port      string `envconfig:"PORT" default:"8084"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	SeedPath  string `envconfig:"SEED_PATH" default:"config/seed.yaml"`

	Storage   StorageConfig   `envconfig:"STORAGE"`
	Cache     CacheConfig     `envconfig:"CACHE"`
	Session   SessionConfig   `envconfig:"SESSION"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
}

// StorageConfig escolhe o repositório. "memory" serve para desenvolvimento local.
type StorageConfig struct {
	Mode       string `split_words:"true" default:"firestore" validate:"oneof=firestore memory"`
	ProjectID  string `split_words:"true" default:"analise-sped-db" validate:"required_if=Mode firestore"`
	DatabaseID string `split_words:"true" default:"analise-sped-db" validate:"required_if=Mode firestore"`
}

// CacheConfig controla o cache de leituras de configuração.
type CacheConfig struct {
	Backend       string        `split_words:"true" default:"memory" validate:"oneof=memory redis"`
	TTL           time.Duration `split_words:"true" default:"5m" validate:"gt=0"`
	RedisAddr     string        `split_words:"true" default:"localhost:6379" validate:"required_if=Backend redis"`
	RedisPassword string        `split_words:"true"`
	RedisDB       int           `split_words:"true" default:"0" validate:"gte=0"`
}

type SessionConfig struct {
	TTL time.Duration `split_words:"true" default:"2h" validate:"gt=0"`
}

// RateLimitConfig limita o endpoint de importação.
type RateLimitConfig struct {
	RPS   float64 `split_words:"true" default:"2" validate:"gt=0"`
	Burst int     `split_words:"true" default:"5" validate:"gt=0"`
}

// Load lê a configuração do ambiente e a valida.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("falha ao ler configuração do ambiente: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuração inválida: %w", err)
	}
	return &cfg, nil
}

// LoadEnv carrega variáveis de um arquivo .env sem sobrescrever as já definidas.
// Devolve false quando o arquivo não existe.
func LoadEnv(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return true, scanner.Err()
}

// NewLogger monta o logger zap do nível configurado; debug usa o formato de desenvolvimento.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("nível de log inválido %q: %w", level, err)
	}
	cfg.Level = lvl
	return cfg.Build()
}
