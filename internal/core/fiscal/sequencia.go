// internal/core/fiscal/sequencia.go
package fiscal

import (
	"sort"
	"strconv"

	"fiscal-service/internal/domain"
)

type chaveSerie struct {
	Cnpj  string
	Serie string
}

// analisadorSequencia acumula os números emitidos por (emitente, série) ao
// longo do lote e reporta os números pulados ao final. Construído novo a cada
// invocação do pipeline; nenhum estado atravessa lotes.
type analisadorSequencia struct {
	observados map[chaveSerie]map[int]bool
}

func novoAnalisadorSequencia() *analisadorSequencia {
	return &analisadorSequencia{observados: make(map[chaveSerie]map[int]bool)}
}

// Registrar acumula o número do documento; documentos sem número são ignorados.
func (a *analisadorSequencia) Registrar(doc *domain.DocumentoFiscal) {
	numero, err := strconv.Atoi(somenteDigitos(doc.Numero))
	if err != nil || doc.CnpjEmitente == "" {
		return
	}
	chave := chaveSerie{Cnpj: doc.CnpjEmitente, Serie: doc.Serie}
	if a.observados[chave] == nil {
		a.observados[chave] = make(map[int]bool)
	}
	a.observados[chave][numero] = true
}

// Lacunas ordena os números observados de cada chave e reporta todo inteiro
// estritamente entre pares adjacentes com diferença maior que 1. A saída é
// determinística independente da ordem de chegada dos documentos.
func (a *analisadorSequencia) Lacunas() []domain.LacunaSequencia {
	chaves := make([]chaveSerie, 0, len(a.observados))
	for chave := range a.observados {
		chaves = append(chaves, chave)
	}
	sort.Slice(chaves, func(i, j int) bool {
		if chaves[i].Cnpj != chaves[j].Cnpj {
			return chaves[i].Cnpj < chaves[j].Cnpj
		}
		return chaves[i].Serie < chaves[j].Serie
	})

	var lacunas []domain.LacunaSequencia
	for _, chave := range chaves {
		numeros := make([]int, 0, len(a.observados[chave]))
		for n := range a.observados[chave] {
			numeros = append(numeros, n)
		}
		sort.Ints(numeros)

		var pulados []int
		for i := 1; i < len(numeros); i++ {
			for n := numeros[i-1] + 1; n < numeros[i]; n++ {
				pulados = append(pulados, n)
			}
		}
		if len(pulados) > 0 {
			lacunas = append(lacunas, domain.LacunaSequencia{
				CnpjEmitente:   chave.Cnpj,
				Serie:          chave.Serie,
				NumerosPulados: pulados,
			})
		}
	}
	return lacunas
}
