// internal/core/fiscal/normalize.go
package fiscal

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// parseValorBR aceita os quatro formatos de entrada que aparecem nos XMLs:
// "1500.00", "1.500,00", "1500,00" e "1500". Entrada inválida vira 0 — o
// pipeline nunca descarta um documento por um campo numérico ruim.
func parseValorBR(val string) float64 {
	s := strings.TrimSpace(val)
	if s == "" {
		return 0.0
	}
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return 0.0
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimPrefix(strings.TrimSuffix(s, ")"), "(")
	}
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimPrefix(s, "-")
	}

	// a última ocorrência de . ou , decide qual é o separador decimal
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case lastDot > lastComma:
		if strings.Count(s, ".") > 1 {
			parts := strings.Split(s, ".")
			decimalPart := parts[len(parts)-1]
			intPart := strings.Join(parts[:len(parts)-1], "")
			s = intPart + "." + decimalPart
		}
	}

	filtered := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			filtered = append(filtered, r)
		}
	}
	s = string(filtered)
	if s == "" {
		return 0.0
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	if neg {
		f = -f
	}
	return f
}

// arredonda arredonda para o número de casas decimais informado.
func arredonda(val float64, casas int) float64 {
	pow := math.Pow(10, float64(casas))
	return math.Round(val*pow) / pow
}

// layouts de data aceitos, do mais específico para o mais genérico.
var layoutsData = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// normalizarData converte a data para "2006-01-02". Formato desconhecido
// passa adiante inalterado, com ok=false, para revisão manual.
func normalizarData(valor string) (string, bool) {
	s := strings.TrimSpace(valor)
	if s == "" {
		return "", false
	}
	for _, layout := range layoutsData {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return s, false
}

// somenteDigitos remove tudo que não é dígito.
func somenteDigitos(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizarCnpj reduz o identificador a dígitos e completa com zeros à
// esquerda até 14 posições (CPFs de 11 dígitos viram 14). Vazio fica vazio;
// o chamador decide se aplica o tomador genérico.
func normalizarCnpj(valor string) string {
	digitos := somenteDigitos(valor)
	if digitos == "" {
		return ""
	}
	if len(digitos) > 14 {
		return digitos[len(digitos)-14:]
	}
	return strings.Repeat("0", 14-len(digitos)) + digitos
}
