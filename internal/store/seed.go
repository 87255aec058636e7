package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"orders-service/internal/core/normalize"
	"orders-service/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Seed é a configuração inicial de embalagens e taxas, lida de um arquivo YAML.
type Seed struct {
	Packaging []domain.PackagingRule `yaml:"packaging" validate:"dive"`
	Fees      []domain.FeeSchedule   `yaml:"fees" validate:"dive"`
}

// LoadSeed lê e valida o arquivo de configuração inicial.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed decodifica e valida o YAML de configuração inicial.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("yaml de configuração inválido: %w", err)
	}
	if err := validator.New().Struct(seed); err != nil {
		return nil, fmt.Errorf("configuração inicial inválida: %w", err)
	}
	for i := range seed.Fees {
		for n, fee := range seed.Fees[i].CreditFees {
			if n < 1 || fee < 0 {
				return nil, fmt.Errorf("taxa de crédito inválida para %s: %d parcelas, %.2f%%", seed.Fees[i].Operator, n, fee)
			}
		}
	}
	return &seed, nil
}

// ApplySeed grava embalagens e taxas apenas quando o repositório ainda não tem nenhuma.
func ApplySeed(ctx context.Context, repo Repository, seed *Seed, logger *zap.Logger) error {
	if seed == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := repo.PackagingRules(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 && len(seed.Packaging) > 0 {
		withIDs := make([]domain.PackagingRule, len(seed.Packaging))
		for i, r := range seed.Packaging {
			if r.ID == "" {
				r.ID = docIDFor(r.Name)
			}
			withIDs[i] = r
		}
		if err := repo.SavePackagingRules(ctx, withIDs); err != nil {
			return fmt.Errorf("erro ao gravar embalagens iniciais: %w", err)
		}
		logger.Info("embalagens iniciais gravadas", zap.Int("regras", len(withIDs)))
	}

	fees, err := repo.FeeSchedules(ctx)
	if err != nil {
		return err
	}
	if len(fees) == 0 && len(seed.Fees) > 0 {
		if err := repo.SaveFeeSchedules(ctx, seed.Fees); err != nil {
			return fmt.Errorf("erro ao gravar taxas iniciais: %w", err)
		}
		logger.Info("taxas de operadoras iniciais gravadas", zap.Int("operadoras", len(seed.Fees)))
	}
	return nil
}

// docIDFor gera um id legível a partir do nome ("Sacola Plástica" -> "sacola-plastica").
func docIDFor(name string) string {
	id := strings.ReplaceAll(normalize.Header(name), " ", "-")
	if id == "" {
		return uuid.NewString()
	}
	return id
}
