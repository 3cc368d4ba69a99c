// internal/core/fiscal/agregador.go
package fiscal

import (
	"sort"
	"time"

	"fiscal-service/internal/domain"
)

type chaveMes struct {
	Ano int
	Mes int
}

// agregador percorre os itens do lote uma vez acumulando por NCM e por mês de
// emissão. Função pura do conjunto de entrada: rodar duas vezes sobre os
// mesmos documentos produz resumos idênticos.
type agregador struct {
	porNCM map[string]*domain.ResumoNCM
	porMes map[chaveMes]*domain.ResumoMensal
}

func novoAgregador() *agregador {
	return &agregador{
		porNCM: make(map[string]*domain.ResumoNCM),
		porMes: make(map[chaveMes]*domain.ResumoMensal),
	}
}

// Acumular soma o documento nos dois agrupamentos.
func (a *agregador) Acumular(doc *domain.DocumentoFiscal) {
	var mensal *domain.ResumoMensal
	if t, err := time.Parse("2006-01-02", doc.DataEmissao); err == nil {
		chave := chaveMes{Ano: t.Year(), Mes: int(t.Month())}
		mensal = a.porMes[chave]
		if mensal == nil {
			mensal = &domain.ResumoMensal{Ano: chave.Ano, Mes: chave.Mes}
			a.porMes[chave] = mensal
		}
		mensal.Quantidade++
		mensal.ValorTotal += doc.ValorTotal
	}

	for _, item := range doc.Itens {
		resumo := a.porNCM[item.NCM]
		if resumo == nil {
			resumo = &domain.ResumoNCM{NCM: item.NCM}
			a.porNCM[item.NCM] = resumo
		}
		resumo.Quantidade += item.Quantidade
		resumo.ValorTotal += item.ValorTotal
		resumo.TotalPIS += item.ValorPIS
		resumo.TotalCOFINS += item.ValorCOFINS
		resumo.TotalCSLL += item.ValorCSLL

		if mensal != nil {
			mensal.TotalPIS += item.ValorPIS
			mensal.TotalCOFINS += item.ValorCOFINS
			mensal.TotalCSLL += item.ValorCSLL
		}
	}
}

// percentual devolve a participação arredondada, 0.00 quando o total é zero.
func percentual(parte, total float64) float64 {
	if total == 0 {
		return 0.0
	}
	return arredonda(parte*100/total, 2)
}

// Resumos fecha os percentuais e devolve as listas ordenadas: NCM
// lexicográfico, meses cronológicos.
func (a *agregador) Resumos() ([]domain.ResumoNCM, []domain.ResumoMensal) {
	resumosNCM := make([]domain.ResumoNCM, 0, len(a.porNCM))
	for _, r := range a.porNCM {
		r.ValorTotal = arredonda(r.ValorTotal, 2)
		r.PercPIS = percentual(r.TotalPIS, r.ValorTotal)
		r.PercCOFINS = percentual(r.TotalCOFINS, r.ValorTotal)
		r.PercCSLL = percentual(r.TotalCSLL, r.ValorTotal)
		resumosNCM = append(resumosNCM, *r)
	}
	sort.Slice(resumosNCM, func(i, j int) bool { return resumosNCM[i].NCM < resumosNCM[j].NCM })

	resumosMensais := make([]domain.ResumoMensal, 0, len(a.porMes))
	for _, r := range a.porMes {
		r.ValorTotal = arredonda(r.ValorTotal, 2)
		r.PercPIS = percentual(r.TotalPIS, r.ValorTotal)
		r.PercCOFINS = percentual(r.TotalCOFINS, r.ValorTotal)
		r.PercCSLL = percentual(r.TotalCSLL, r.ValorTotal)
		resumosMensais = append(resumosMensais, *r)
	}
	sort.Slice(resumosMensais, func(i, j int) bool {
		if resumosMensais[i].Ano != resumosMensais[j].Ano {
			return resumosMensais[i].Ano < resumosMensais[j].Ano
		}
		return resumosMensais[i].Mes < resumosMensais[j].Mes
	})

	return resumosNCM, resumosMensais
}
