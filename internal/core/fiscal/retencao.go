// internal/core/fiscal/retencao.go
package fiscal

import "strings"

// resultadoRetencao é o retorno da detecção de ISS retido.
type resultadoRetencao struct {
	Retido   bool
	Valor    float64
	TemValor bool
}

// Nomes de flag usados pelas prefeituras, em ordem de tentativa. O layout
// ABRASF usa IssRetido=1/2; outros usam booleanos, "sim"/"não" ou "1"/"0".
var camposFlagRetencao = []string{
	"IssRetido",
	"ISSRetidoFonte",
	"IssRetidoFonte",
	"RetencaoIss",
	"IndicadorRetencaoIss",
	"RetidoFonte",
	"Retido",
}

// Nomes de campo de valor retido, paralelos às flags acima.
var camposValorRetencao = []string{
	"ValorIssRetido",
	"vISSRet",
	"ValorISSRF",
	"ValorRetencaoIss",
	"IssRetidoValor",
	"ValorIss",
}

// valores que indicam retenção positiva nas várias codificações
func flagPositiva(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "1", "true", "t", "sim", "s", "verdadeiro":
		return true
	}
	return false
}

// detectarRetencao procura a flag de ISS retido e, quando positiva, o valor
// retido correspondente. Nunca falha: documento sem nenhum campo conhecido é
// tratado como sem retenção.
func detectarRetencao(raiz *noXML) resultadoRetencao {
	for _, campo := range camposFlagRetencao {
		no := raiz.Busca(campo)
		if no == nil {
			continue
		}
		t := no.Texto()
		if t == "" {
			continue
		}
		if !flagPositiva(t) {
			return resultadoRetencao{Retido: false}
		}
		res := resultadoRetencao{Retido: true}
		for _, campoValor := range camposValorRetencao {
			if v := raiz.TextoDe(campoValor); v != "" {
				res.Valor = parseValorBR(v)
				res.TemValor = true
				break
			}
		}
		return res
	}
	return resultadoRetencao{Retido: false}
}
