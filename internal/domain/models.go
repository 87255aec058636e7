// package domain/models.go
package domain

import (
	"math"
	"time"
)

// Campos canônicos reconhecidos pelo normalizador.
const (
	FieldCodigo             = "codigo"
	FieldData               = "data"
	FieldTipo               = "tipo"
	FieldNomeCliente        = "nomeCliente"
	FieldVendedor           = "vendedor"
	FieldCidade             = "cidade"
	FieldCanal              = "canal"
	FieldFidelidade         = "fidelidade"
	FieldCanalLogistico     = "canalLogistico"
	FieldFinal              = "final"
	FieldFrete              = "frete"
	FieldIDMovimentoEstoque = "idMovimentoEstoque"
	FieldQuantidadeItens    = "quantidadeItens"

	FieldItem           = "item"
	FieldDescricao      = "descricao"
	FieldValorUnitario  = "valorUnitario"
	FieldQuantidade     = "quantidade"
	FieldCustoUnitario  = "custoUnitario"
	FieldCustoFrete     = "custoFrete"
	FieldValorDescontos = "valorDescontos"

	FieldParcela             = "parcela"
	FieldValorParcela        = "valorParcela"
	FieldNumeroParcelas      = "numeroParcelas"
	FieldInstituicao         = "instituicao"
	FieldModalidadePagamento = "modalidadePagamento"
	FieldValorPagamento      = "valorPagamento"
	FieldDataPagamento       = "dataPagamento"
)

// Campos derivados gravados no registro achatado do pedido.
const (
	FieldQuantidadeTotal = "quantidadeTotal"
	FieldCustoTotal      = "custoTotal"
	FieldCustoEmbalagem  = "custoEmbalagem"
	FieldTaxaTotalCartao = "taxaTotalCartao"
	FieldTotalParcelas   = "totalParcelas"
	FieldSubRows         = "subRows"
	FieldParcelas        = "parcelas"
	FieldEmbalagens      = "embalagens"
	FieldCosts           = "costs"
)

// SourceKind identifica a origem de uma planilha importada.
type SourceKind string

const (
	SourcePedidos   SourceKind = "pedidos"
	SourceLogistica SourceKind = "logistica"
	SourceCustos    SourceKind = "custos"
)

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourcePedidos, SourceLogistica, SourceCustos:
		return true
	}
	return false
}

// RawRow é uma linha física de planilha: rótulo livre -> valor bruto.
type RawRow struct {
	Source string
	Cells  map[string]any
}

// CanonicalRow é uma RawRow normalizada. Seq fixa a ordem de ingestão.
type CanonicalRow struct {
	Source string
	Seq    int
	// Key identifica a linha entre importações: o mesmo conteúdo reimportado tem a mesma Key.
	Key    string
	Fields map[string]any
}

// Has reports whether the row carries a non-empty value for field.
func (r CanonicalRow) Has(field string) bool {
	return !IsEmpty(r.Fields[field])
}

// Number returns the field as a finite float64.
func (r CanonicalRow) Number(field string) (float64, bool) {
	return AsNumber(r.Fields[field])
}

// Text returns the field as a string; numbers are not converted.
func (r CanonicalRow) Text(field string) string {
	s, _ := r.Fields[field].(string)
	return s
}

// Date returns the field as a time.Time.
func (r CanonicalRow) Date(field string) (time.Time, bool) {
	t, ok := r.Fields[field].(time.Time)
	return t, ok && !t.IsZero()
}

// IsEmpty trata nil, string vazia, NaN e data zero como ausência de valor.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case float64:
		return math.IsNaN(x)
	case time.Time:
		return x.IsZero()
	}
	return false
}

// AsNumber extracts a finite float64 from the numeric kinds the engine stores.
func AsNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// --- Pedido consolidado ---

// Parcela é um registro de parcelamento associado ao pedido.
type Parcela struct {
	Numero      int       `json:"numero" firestore:"numero"`
	Valor       float64   `json:"valor" firestore:"valor"`
	Data        time.Time `json:"data,omitempty" firestore:"data,omitempty"`
	Instituicao string    `json:"instituicao,omitempty" firestore:"instituicao,omitempty"`
}

// PaymentMode classifica um registro de custo de cartão.
type PaymentMode string

const (
	PaymentDebit  PaymentMode = "debito"
	PaymentCredit PaymentMode = "credito"
	PaymentOther  PaymentMode = "outro"
)

// CostRecord é uma linha de custo de pagamento (maquininha/adquirente) do pedido.
type CostRecord struct {
	Operadora  string      `json:"operadora" firestore:"operadora"`
	Modalidade PaymentMode `json:"modalidade" firestore:"modalidade"`
	Parcelas   int         `json:"parcelas" firestore:"parcelas"`
	Valor      float64     `json:"valor" firestore:"valor"`
	Taxa       float64     `json:"taxa" firestore:"taxa"`
}

// AppliedPackaging é uma regra de embalagem efetivamente aplicada a um pedido.
type AppliedPackaging struct {
	Nome          string  `json:"nome" firestore:"nome"`
	Quantidade    int     `json:"quantidade" firestore:"quantidade"`
	CustoUnitario float64 `json:"custoUnitario" firestore:"custoUnitario"`
	CustoTotal    float64 `json:"custoTotal" firestore:"custoTotal"`
}

// OrderGroup agrega todas as linhas de um mesmo código de pedido.
type OrderGroup struct {
	Code     string
	Header   map[string]any
	Rows     []CanonicalRow
	SubRows  []CanonicalRow
	Parcelas []Parcela
	Costs    []CostRecord

	TotalParcelas   float64
	QuantidadeTotal float64
	ItemsSum        float64
	HeaderFinal     float64
	Final           float64
	CustoTotal      float64
	CustoFrete      float64
	ValorDescontos  float64
	CustoEmbalagem  float64
	Embalagens      []AppliedPackaging
	TaxaTotalCartao float64
	Custom          map[string]float64
}

// Flatten returns the group as a single field map, suitable for the table view and for
// persistence as a flattened document.
func (g *OrderGroup) Flatten() map[string]any {
	out := make(map[string]any, len(g.Header)+16)
	for k, v := range g.Header {
		out[k] = v
	}
	out[FieldCodigo] = g.Code
	out[FieldFinal] = g.Final
	out[FieldQuantidadeTotal] = g.QuantidadeTotal
	out[FieldCustoTotal] = g.CustoTotal
	out[FieldCustoFrete] = g.CustoFrete
	out[FieldValorDescontos] = g.ValorDescontos
	out[FieldCustoEmbalagem] = g.CustoEmbalagem
	out[FieldTaxaTotalCartao] = g.TaxaTotalCartao
	out[FieldTotalParcelas] = g.TotalParcelas
	for id, v := range g.Custom {
		out[id] = v
	}

	subRows := make([]map[string]any, 0, len(g.SubRows))
	for _, r := range g.SubRows {
		subRows = append(subRows, r.Fields)
	}
	out[FieldSubRows] = subRows
	out[FieldParcelas] = g.Parcelas
	out[FieldEmbalagens] = g.Embalagens
	out[FieldCosts] = g.Costs
	return out
}

// --- Configuração (persistida externamente) ---

// FormulaKind é o tipo de um token de fórmula.
type FormulaKind string

const (
	FormulaColumn   FormulaKind = "column"
	FormulaNumber   FormulaKind = "number"
	FormulaOperator FormulaKind = "operator"
)

// FormulaItem é um token de uma expressão montada pelo usuário.
type FormulaItem struct {
	Kind  FormulaKind `json:"type" firestore:"type" validate:"required,oneof=column number operator"`
	Value string      `json:"value" firestore:"value" validate:"required"`
	Label string      `json:"label,omitempty" firestore:"label,omitempty"`
}

// Interaction combina o resultado da fórmula com um campo existente.
type Interaction struct {
	TargetField string `json:"targetColumn" firestore:"targetColumn" validate:"required"`
	Operator    string `json:"operator" firestore:"operator" validate:"required,oneof=+ -"`
}

// CustomCalculation é uma coluna calculada definida pelo usuário.
type CustomCalculation struct {
	ID            string        `json:"id" firestore:"id" validate:"required"`
	Name          string        `json:"name" firestore:"name" validate:"required"`
	Formula       []FormulaItem `json:"formula" firestore:"formula" validate:"required,min=1,dive"`
	IsPercentage  bool          `json:"isPercentage" firestore:"isPercentage"`
	TargetChannel string        `json:"targetMarketplace,omitempty" firestore:"targetMarketplace,omitempty"`
	Interaction   *Interaction  `json:"interaction,omitempty" firestore:"interaction,omitempty" validate:"omitempty"`
}

// Modality é a classificação logística usada pelas regras de embalagem.
type Modality string

const (
	ModalityLoja     Modality = "Loja"
	ModalityDelivery Modality = "Delivery"
	ModalityAll      Modality = "All"
)

// QuantityStrategy define como a quantidade de uma embalagem é resolvida.
type QuantityStrategy string

const (
	PerOrder  QuantityStrategy = "per-order"
	PerUnit   QuantityStrategy = "per-unit"
	PerNUnits QuantityStrategy = "per-n-units"
)

// PackagingRule é uma embalagem cadastrada com custo unitário.
type PackagingRule struct {
	ID               string           `json:"id,omitempty" firestore:"id,omitempty" yaml:"id"`
	Name             string           `json:"name" firestore:"name" yaml:"name" validate:"required"`
	Modalities       []Modality       `json:"modalities" firestore:"modalities" yaml:"modalities" validate:"dive,oneof=Loja Delivery All"`
	UnitCost         float64          `json:"unitCost" firestore:"unitCost" yaml:"unitCost" validate:"gte=0"`
	QuantityStrategy QuantityStrategy `json:"quantityStrategy,omitempty" firestore:"quantityStrategy,omitempty" yaml:"quantityStrategy" validate:"omitempty,oneof=per-order per-unit per-n-units"`
	UnitsPerPackage  int              `json:"unitsPerPackage,omitempty" firestore:"unitsPerPackage,omitempty" yaml:"unitsPerPackage" validate:"gte=0"`
}

// Covers reports whether the rule is tagged for modality m.
func (r PackagingRule) Covers(m Modality) bool {
	if len(r.Modalities) == 0 {
		return true
	}
	for _, rm := range r.Modalities {
		if rm == m || rm == ModalityAll {
			return true
		}
	}
	return false
}

// FeeSchedule é a tabela de taxas de uma operadora de cartão.
type FeeSchedule struct {
	Operator   string          `json:"operator" firestore:"operator" yaml:"operator" validate:"required"`
	DebitFee   float64         `json:"debitFee" firestore:"debitFee" yaml:"debitFee" validate:"gte=0"`
	CreditFees map[int]float64 `json:"creditFees" firestore:"-" yaml:"creditFees"`
}

// ColumnMeta descreve uma coluna da tabela de pedidos.
type ColumnMeta struct {
	ID         string `json:"id" firestore:"id"`
	Label      string `json:"label" firestore:"label"`
	Sortable   bool   `json:"isSortable" firestore:"isSortable"`
	Custom     bool   `json:"custom,omitempty" firestore:"custom,omitempty"`
	Percentage bool   `json:"percentage,omitempty" firestore:"percentage,omitempty"`
}
