// internal/core/fiscal/submitter.go
package fiscal

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"fiscal-service/internal/domain"
	"fiscal-service/internal/ledger"

	"github.com/schollz/closestmatch"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumericRegex = regexp.MustCompile(`[^A-Z0-9 ]+`)
var whitespaceRegex = regexp.MustCompile(`\s+`)

// normalizarTexto remove acentos, sobe para maiúsculas e colapsa espaços,
// para casar nomes de tomador com os nomes cadastrados no ledger.
func normalizarTexto(str string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	result, _, _ := transform.String(t, str)
	result = strings.ToUpper(result)
	result = nonAlphanumericRegex.ReplaceAllString(result, " ")
	result = whitespaceRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// submissor resolve a contraparte de cada documento e dispara o insert em
// lote no ledger. Documento sem contraparte resolvida nunca é submetido.
type submissor struct {
	store ledger.Store
}

// resolvedorNomes é o índice de nomes montado uma vez por lote.
type resolvedorNomes struct {
	porNome map[string]domain.Cliente
	chaves  []string
	cm      *closestmatch.ClosestMatch
}

func (s *submissor) montarResolvedor(ctx context.Context) (*resolvedorNomes, error) {
	clientes, err := s.store.ListarClientes(ctx)
	if err != nil {
		return nil, err
	}

	r := &resolvedorNomes{porNome: make(map[string]domain.Cliente, len(clientes))}
	for _, c := range clientes {
		chave := normalizarTexto(c.Nome)
		if chave == "" {
			continue
		}
		if _, ok := r.porNome[chave]; !ok {
			r.porNome[chave] = c
			r.chaves = append(r.chaves, chave)
		}
	}
	if len(r.chaves) > 0 {
		r.cm = closestmatch.New(r.chaves, []int{3, 4})
	}
	return r, nil
}

// resolver tenta CNPJ exato, nome normalizado exato e por fim fuzzy.
func (s *submissor) resolver(ctx context.Context, doc *domain.DocumentoFiscal, nomes *resolvedorNomes) (*domain.Cliente, error) {
	if doc.CnpjTomador != "" && doc.CnpjTomador != domain.CnpjGenerico {
		cliente, err := s.store.BuscarClientePorCnpj(ctx, doc.CnpjTomador)
		if err != nil {
			return nil, err
		}
		if cliente != nil {
			return cliente, nil
		}
	}

	chave := normalizarTexto(doc.NomeTomador)
	if chave == "" {
		return nil, nil
	}
	if cliente, ok := nomes.porNome[chave]; ok {
		return &cliente, nil
	}
	if nomes.cm != nil {
		if match := nomes.cm.Closest(chave); match != "" {
			if cliente, ok := nomes.porNome[match]; ok {
				return &cliente, nil
			}
		}
	}
	return nil, nil
}

// Submeter resolve as contrapartes do lote e envia as notas resolvidas ao
// ledger. Devolve o resultado do insert e os avisos de tomador não resolvido
// e de chave duplicada.
func (s *submissor) Submeter(ctx context.Context, docs []domain.DocumentoFiscal) (domain.ResultadoInsercao, []domain.Aviso, error) {
	nomes, err := s.montarResolvedor(ctx)
	if err != nil {
		return domain.ResultadoInsercao{}, nil, err
	}

	var avisos []domain.Aviso
	notas := make([]ledger.NotaParaInserir, 0, len(docs))
	for i := range docs {
		cliente, err := s.resolver(ctx, &docs[i], nomes)
		if err != nil {
			return domain.ResultadoInsercao{}, avisos, err
		}
		if cliente == nil {
			avisos = append(avisos, domain.Aviso{
				Arquivo: docs[i].Arquivo,
				Motivo:  domain.MotivoTomadorNaoResolvido,
				Detalhe: docs[i].NomeTomador,
			})
			continue
		}
		notas = append(notas, ledger.NotaParaInserir{ClienteID: cliente.ID, Documento: docs[i]})
	}

	resultado, err := s.store.InserirNotasLote(ctx, notas)
	if err != nil {
		return resultado, avisos, err
	}
	for _, chave := range resultado.Duplicadas {
		avisos = append(avisos, domain.Aviso{
			Motivo:  domain.MotivoChaveDuplicada,
			Detalhe: chave,
		})
	}
	return resultado, avisos, nil
}
