package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"orders-service/internal/domain"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9 ]+`)
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Header remove acentos, caixa e pontuação de um rótulo de coluna.
// "Nº do Pedido" -> "n do pedido".
func Header(label string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	result, _, _ := transform.String(t, label)
	result = strings.ToLower(result)
	result = strings.ReplaceAll(result, "º", "")
	result = strings.ReplaceAll(result, "ª", "")
	result = nonAlphanumericRegex.ReplaceAllString(result, " ")
	result = whitespaceRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// labelTable é a tabela única rótulo normalizado -> campo canônico.
var labelTable = map[string]string{
	"codigo":                  domain.FieldCodigo,
	"cod":                     domain.FieldCodigo,
	"codigo pedido":           domain.FieldCodigo,
	"codigo do pedido":        domain.FieldCodigo,
	"codigo venda":            domain.FieldCodigo,
	"codigo da venda":         domain.FieldCodigo,
	"pedido":                  domain.FieldCodigo,
	"n pedido":                domain.FieldCodigo,
	"n do pedido":             domain.FieldCodigo,
	"numero pedido":           domain.FieldCodigo,
	"numero do pedido":        domain.FieldCodigo,
	"id pedido":               domain.FieldCodigo,
	"venda":                   domain.FieldCodigo,
	"numero venda":            domain.FieldCodigo,
	"numero da venda":         domain.FieldCodigo,
	"n venda":                 domain.FieldCodigo,
	"codigo externo":          domain.FieldCodigo,
	"data":                    domain.FieldData,
	"data venda":              domain.FieldData,
	"data da venda":           domain.FieldData,
	"data pedido":             domain.FieldData,
	"data do pedido":          domain.FieldData,
	"data emissao":            domain.FieldData,
	"data de emissao":         domain.FieldData,
	"emissao":                 domain.FieldData,
	"data movimento":          domain.FieldData,
	"tipo":                    domain.FieldTipo,
	"tipo venda":              domain.FieldTipo,
	"tipo de venda":           domain.FieldTipo,
	"tipo pedido":             domain.FieldTipo,
	"cliente":                 domain.FieldNomeCliente,
	"nome cliente":            domain.FieldNomeCliente,
	"nome do cliente":         domain.FieldNomeCliente,
	"vendedor":                domain.FieldVendedor,
	"vendedora":               domain.FieldVendedor,
	"nome vendedor":           domain.FieldVendedor,
	"cidade":                  domain.FieldCidade,
	"municipio":               domain.FieldCidade,
	"canal":                   domain.FieldCanal,
	"canal venda":             domain.FieldCanal,
	"canal de venda":          domain.FieldCanal,
	"origem":                  domain.FieldCanal,
	"marketplace":             domain.FieldCanal,
	"fidelidade":              domain.FieldFidelidade,
	"programa fidelidade":     domain.FieldFidelidade,
	"canal logistico":         domain.FieldCanalLogistico,
	"logistica":               domain.FieldCanalLogistico,
	"modalidade entrega":      domain.FieldCanalLogistico,
	"modalidade de entrega":   domain.FieldCanalLogistico,
	"tipo entrega":            domain.FieldCanalLogistico,
	"tipo de entrega":         domain.FieldCanalLogistico,
	"entrega":                 domain.FieldCanalLogistico,
	"final":                   domain.FieldFinal,
	"valor final":             domain.FieldFinal,
	"total":                   domain.FieldFinal,
	"valor total":             domain.FieldFinal,
	"total pedido":            domain.FieldFinal,
	"total do pedido":         domain.FieldFinal,
	"total venda":             domain.FieldFinal,
	"valor liquido":           domain.FieldFinal,
	"frete":                   domain.FieldFrete,
	"valor frete":             domain.FieldFrete,
	"valor do frete":          domain.FieldFrete,
	"taxa entrega":            domain.FieldFrete,
	"taxa de entrega":         domain.FieldFrete,
	"id movimentacao estoque": domain.FieldIDMovimentoEstoque,
	"movimentacao estoque":    domain.FieldIDMovimentoEstoque,
	"mov estoque":             domain.FieldIDMovimentoEstoque,
	"qtd itens":               domain.FieldQuantidadeItens,
	"quantidade itens":        domain.FieldQuantidadeItens,
	"quantidade de itens":     domain.FieldQuantidadeItens,
	"total itens":             domain.FieldQuantidadeItens,
	"item":                    domain.FieldItem,
	"produto":                 domain.FieldItem,
	"sku":                     domain.FieldItem,
	"codigo produto":          domain.FieldItem,
	"codigo do produto":       domain.FieldItem,
	"referencia":              domain.FieldItem,
	"descricao":               domain.FieldDescricao,
	"descricao produto":       domain.FieldDescricao,
	"descricao do produto":    domain.FieldDescricao,
	"nome produto":            domain.FieldDescricao,
	"valor unitario":          domain.FieldValorUnitario,
	"valor unit":              domain.FieldValorUnitario,
	"vl unitario":             domain.FieldValorUnitario,
	"preco":                   domain.FieldValorUnitario,
	"preco unitario":          domain.FieldValorUnitario,
	"preco venda":             domain.FieldValorUnitario,
	"quantidade":              domain.FieldQuantidade,
	"qtd":                     domain.FieldQuantidade,
	"qtde":                    domain.FieldQuantidade,
	"quant":                   domain.FieldQuantidade,
	"custo":                   domain.FieldCustoUnitario,
	"custo unitario":          domain.FieldCustoUnitario,
	"custo medio":             domain.FieldCustoUnitario,
	"preco custo":             domain.FieldCustoUnitario,
	"preco de custo":          domain.FieldCustoUnitario,
	"custo frete":             domain.FieldCustoFrete,
	"custo do frete":          domain.FieldCustoFrete,
	"custo de frete":          domain.FieldCustoFrete,
	"custo entrega":           domain.FieldCustoFrete,
	"frete pago":              domain.FieldCustoFrete,
	"desconto":                domain.FieldValorDescontos,
	"descontos":               domain.FieldValorDescontos,
	"valor desconto":          domain.FieldValorDescontos,
	"valor descontos":         domain.FieldValorDescontos,
	"parcela":                 domain.FieldParcela,
	"n parcela":               domain.FieldParcela,
	"numero parcela":          domain.FieldParcela,
	"numero da parcela":       domain.FieldParcela,
	"valor parcela":           domain.FieldValorParcela,
	"valor da parcela":        domain.FieldValorParcela,
	"parcelas":                domain.FieldNumeroParcelas,
	"qtd parcelas":            domain.FieldNumeroParcelas,
	"quantidade parcelas":     domain.FieldNumeroParcelas,
	"numero parcelas":         domain.FieldNumeroParcelas,
	"numero de parcelas":      domain.FieldNumeroParcelas,
	"n parcelas":              domain.FieldNumeroParcelas,
	"instituicao":             domain.FieldInstituicao,
	"instituicao financeira":  domain.FieldInstituicao,
	"instituicao pagamento":   domain.FieldInstituicao,
	"operadora":               domain.FieldInstituicao,
	"adquirente":              domain.FieldInstituicao,
	"maquininha":              domain.FieldInstituicao,
	"forma pagamento":         domain.FieldModalidadePagamento,
	"forma de pagamento":      domain.FieldModalidadePagamento,
	"modalidade pagamento":    domain.FieldModalidadePagamento,
	"modalidade":              domain.FieldModalidadePagamento,
	"tipo pagamento":          domain.FieldModalidadePagamento,
	"tipo de pagamento":       domain.FieldModalidadePagamento,
	"valor pagamento":         domain.FieldValorPagamento,
	"valor pago":              domain.FieldValorPagamento,
	"valor transacao":         domain.FieldValorPagamento,
	"valor bruto":             domain.FieldValorPagamento,
	"data pagamento":          domain.FieldDataPagamento,
	"data do pagamento":       domain.FieldDataPagamento,
	"data vencimento":         domain.FieldDataPagamento,
}

// heuristic liga um fragmento de rótulo a um campo. Todos os fragmentos precisam aparecer.
type heuristic struct {
	parts []string
	field string
}

// Ordem importa: "custo" + "frete" precisa vencer "frete".
var heuristics = []heuristic{
	{[]string{"custo", "frete"}, domain.FieldCustoFrete},
	{[]string{"custo", "unit"}, domain.FieldCustoUnitario},
	{[]string{"desconto"}, domain.FieldValorDescontos},
	{[]string{"cliente"}, domain.FieldNomeCliente},
	{[]string{"vendedor"}, domain.FieldVendedor},
	{[]string{"cidade"}, domain.FieldCidade},
	{[]string{"fidelidade"}, domain.FieldFidelidade},
	{[]string{"logistic"}, domain.FieldCanalLogistico},
	{[]string{"valor", "parcela"}, domain.FieldValorParcela},
	{[]string{"operadora"}, domain.FieldInstituicao},
	{[]string{"instituicao"}, domain.FieldInstituicao},
	{[]string{"forma", "pagamento"}, domain.FieldModalidadePagamento},
	{[]string{"valor", "unit"}, domain.FieldValorUnitario},
	{[]string{"quantidade"}, domain.FieldQuantidade},
	{[]string{"frete"}, domain.FieldFrete},
}

// CanonicalField resolve um rótulo livre para o campo canônico. O segundo retorno indica
// se o rótulo foi reconhecido (tabela ou heurística); quando não, o campo é o snake_case
// gerado a partir do rótulo.
func CanonicalField(label string) (string, bool) {
	h := Header(label)
	if h == "" {
		return "coluna_sem_nome", false
	}
	if f, ok := labelTable[h]; ok {
		return f, true
	}
	for _, hr := range heuristics {
		matched := true
		for _, p := range hr.parts {
			if !strings.Contains(h, p) {
				matched = false
				break
			}
		}
		if matched {
			return hr.field, true
		}
	}
	return strings.ReplaceAll(h, " ", "_"), false
}
