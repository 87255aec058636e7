package normalize

import (
	"math"
	"strconv"
	"strings"
)

// Code produz a chave de agrupamento de um código de pedido: remove o artefato ".0"
// de planilha, mantém só letras/dígitos ASCII, remove zeros à esquerda e coloca em
// caixa alta. Code(Code(x)) == Code(x).
func Code(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		if x == math.Trunc(x) {
			s = strconv.FormatFloat(x, 'f', 0, 64)
		} else {
			s = strconv.FormatFloat(x, 'f', -1, 64)
		}
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	default:
		return ""
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}
