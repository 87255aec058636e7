package orders

import "orders-service/internal/domain"

// itemFields marcam uma linha de item do pedido.
var itemFields = []string{
	domain.FieldItem,
	domain.FieldDescricao,
	domain.FieldValorUnitario,
	domain.FieldQuantidade,
}

// supportFields marcam linhas de apoio: parcelas e pagamentos.
var supportFields = []string{
	domain.FieldParcela,
	domain.FieldValorParcela,
	domain.FieldNumeroParcelas,
	domain.FieldInstituicao,
	domain.FieldModalidadePagamento,
	domain.FieldValorPagamento,
}

// IsDetail reports whether row is an item/support line rather than an order header.
func IsDetail(row domain.CanonicalRow) bool {
	for _, f := range itemFields {
		if row.Has(f) {
			return true
		}
	}
	for _, f := range supportFields {
		if row.Has(f) {
			return true
		}
	}
	return false
}

// isItem reports whether row describes a product line (not a payment or installment).
func isItem(row domain.CanonicalRow) bool {
	for _, f := range itemFields {
		if row.Has(f) {
			return true
		}
	}
	return false
}

func isInstallment(row domain.CanonicalRow) bool {
	return row.Has(domain.FieldParcela) || row.Has(domain.FieldValorParcela)
}

func isPayment(row domain.CanonicalRow) bool {
	return row.Has(domain.FieldInstituicao)
}
