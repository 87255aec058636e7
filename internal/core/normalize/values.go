package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numberShape aceita apenas dígitos, separadores e sinal; datas e textos ficam de fora.
var numberShape = regexp.MustCompile(`^[-+]?\(?[-+]?[0-9][0-9.,]*\)?$`)
var dateLike = regexp.MustCompile(`^\d{1,4}[-/]\d{1,2}[-/]\d{1,4}`)

// Number tenta converter um valor bruto em float64. Valores já numéricos passam direto;
// strings que não parecem número são devolvidas sem alteração.
func Number(v any) (any, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, ok := parseBRLNumber(x)
		if !ok {
			return v, false
		}
		return f, true
	}
	return v, false
}

// parseBRLNumber: heurística para entradas brasileiras/anglo.
// "1.234,56" -> 1234.56; "1,234.56" -> 1234.56; "(123,45)" -> -123.45; "R$ 99,90" -> 99.9
func parseBRLNumber(val string) (float64, bool) {
	s := strings.TrimSpace(val)
	if s == "" || dateLike.MatchString(s) {
		return 0, false
	}
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || !numberShape.MatchString(s) {
		return 0, false
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimPrefix(strings.TrimSuffix(s, ")"), "(")
	} else if strings.ContainsAny(s, "()") {
		return 0, false
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot == -1 && strings.Count(s, ",") > 1:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma == -1 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case lastComma > lastDot:
		// BR: vírgula decimal, ponto de milhar
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		if strings.Contains(s, ",") {
			return 0, false
		}
	default:
		// US: remove vírgulas de milhar
		s = strings.ReplaceAll(s, ",", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// Formatos de data tentados em ordem; o primeiro que funcionar vence.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
	"01/02/2006",
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// maxSerial limita seriais de planilha aceitos (≈ 2173-10-14).
const maxSerial = 100000

// Date converte um valor bruto em time.Time. Retorna false quando não há data utilizável.
func Date(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case interface{ AsTime() time.Time }:
		t := x.AsTime()
		return t, !t.IsZero()
	case map[string]any:
		return timestampMap(x)
	case float64:
		return serialDate(x)
	case int:
		return serialDate(float64(x))
	case int64:
		return serialDate(float64(x))
	case string:
		return parseDateString(x)
	}
	return time.Time{}, false
}

// timestampMap aceita o formato serializado {seconds, nanoseconds} de timestamps do Firestore.
func timestampMap(m map[string]any) (time.Time, bool) {
	secs, ok := numberOf(m["seconds"])
	if !ok {
		secs, ok = numberOf(m["_seconds"])
	}
	if !ok {
		return time.Time{}, false
	}
	nanos, ok := numberOf(m["nanoseconds"])
	if !ok {
		nanos, _ = numberOf(m["_nanoseconds"])
	}
	return time.Unix(int64(secs), int64(nanos)).UTC(), true
}

func numberOf(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}

func serialDate(serial float64) (time.Time, bool) {
	if serial <= 0 || serial >= maxSerial || math.IsNaN(serial) {
		return time.Time{}, false
	}
	return excelSerialToDate(serial), true
}

func excelSerialToDate(serial float64) time.Time {
	// base Excel serial -> 1899-12-30
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	frac := serial - float64(int64(serial))
	duration := time.Duration(int64(serial)*24) * time.Hour
	duration += time.Duration(frac * 24 * float64(time.Hour))
	return base.Add(duration)
}

func parseDateString(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return serialDate(f)
	}
	token := s
	if i := strings.IndexAny(s, " T"); i > 0 {
		token = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return t, true
		}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
