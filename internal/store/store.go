// Package store persiste linhas importadas, pedidos consolidados e a configuração do
// painel (cálculos, embalagens, taxas e colunas).
package store

import (
	"context"
	"errors"

	"orders-service/internal/domain"
)

// ErrNotFound indica documento inexistente.
var ErrNotFound = errors.New("registro não encontrado")

// Coleções do banco de documentos.
const (
	CollectionOrders       = "pedidosConsolidados"
	CollectionCalculations = "calculosPersonalizados"
	CollectionPackaging    = "regrasEmbalagem"
	CollectionFees         = "taxasOperadoras"
	CollectionColumns      = "colunas"

	columnsDocID = "pedidos"
)

// rowCollections mapeia cada tipo de planilha para sua coleção de linhas.
var rowCollections = []domain.SourceKind{
	domain.SourcePedidos,
	domain.SourceLogistica,
	domain.SourceCustos,
}

// Repository é o colaborador de persistência do painel.
type Repository interface {
	Rows(ctx context.Context) ([]domain.CanonicalRow, error)
	SaveRows(ctx context.Context, kind domain.SourceKind, rows []domain.CanonicalRow) error
	Orders(ctx context.Context) ([]map[string]any, error)
	SaveOrders(ctx context.Context, records []map[string]any) error

	Calculations(ctx context.Context) ([]domain.CustomCalculation, error)
	SaveCalculation(ctx context.Context, calc domain.CustomCalculation) error
	DeleteCalculation(ctx context.Context, id string) error

	PackagingRules(ctx context.Context) ([]domain.PackagingRule, error)
	SavePackagingRules(ctx context.Context, rules []domain.PackagingRule) error
	FeeSchedules(ctx context.Context) ([]domain.FeeSchedule, error)
	SaveFeeSchedules(ctx context.Context, fees []domain.FeeSchedule) error

	Columns(ctx context.Context) ([]domain.ColumnMeta, error)
	SaveColumns(ctx context.Context, cols []domain.ColumnMeta) error
}

// rowKey é o id de documento de uma linha: a Key estável, ou o Seq quando ela falta.
// Gravar a mesma Key de novo substitui a linha anterior.
func rowKey(r domain.CanonicalRow) string {
	if r.Key != "" {
		return r.Key
	}
	return rowDocID(r.Seq)
}
