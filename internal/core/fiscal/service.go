// internal/core/fiscal/service.go
package fiscal

import (
	"context"
	"fmt"
	"time"

	"fiscal-service/internal/core/tributacao"
	"fiscal-service/internal/domain"
	"fiscal-service/internal/ledger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OpcoesLote controla o comportamento de uma invocação do pipeline.
type OpcoesLote struct {
	// ForcarClassificacao faz XML sem marcador de família ser processado
	// como NFe (comportamento legado); desligado, ele é pulado com aviso.
	ForcarClassificacao bool
	// EnriquecerST liga a consulta de substituição tributária por item.
	EnriquecerST bool
	// Submeter envia o lote extraído ao ledger.
	Submeter bool
	// Par de UFs usado quando o documento não traz origem/destino.
	UFOrigemPadrao  string
	UFDestinoPadrao string
}

// Service é o motor de normalização de documentos fiscais.
type Service interface {
	ProcessarLote(ctx context.Context, arquivos []domain.ArquivoEntrada, opcoes OpcoesLote) (*domain.ResultadoLote, error)
}

type service struct {
	log        *zap.Logger
	tributacao tributacao.Service
	store      ledger.Store
	agora      func() time.Time
}

// NewService cria o motor. O serviço de ST e o ledger são opcionais: sem
// eles, enriquecimento e submissão são ignorados mesmo se pedidos.
func NewService(log *zap.Logger, st tributacao.Service, store ledger.Store) Service {
	return &service{
		log:        log,
		tributacao: st,
		store:      store,
		agora:      time.Now,
	}
}

// ProcessarLote executa o pipeline completo: expansão, classificação,
// extração, análise de sequência, enriquecimento, agregação e submissão.
// Falha por documento nunca aborta o lote; só um envio sem nenhum XML é erro.
func (s *service) ProcessarLote(ctx context.Context, arquivos []domain.ArquivoEntrada, opcoes OpcoesLote) (*domain.ResultadoLote, error) {
	inicio := s.agora()

	xmls, err := expandirArquivos(arquivos)
	if err != nil {
		return nil, err
	}
	if len(xmls) == 0 {
		return nil, fmt.Errorf("nenhum arquivo XML encontrado no envio")
	}

	resultado := &domain.ResultadoLote{
		LoteID: uuid.NewString(),
		Total:  len(xmls),
	}
	sequencia := novoAnalisadorSequencia()

	for _, arq := range xmls {
		docs, aviso := s.processarArquivo(arq, opcoes)
		if aviso != nil {
			resultado.Avisos = append(resultado.Avisos, *aviso)
			resultado.Descartados++
			continue
		}
		for _, doc := range docs {
			sequencia.Registrar(doc)
			resultado.Documentos = append(resultado.Documentos, *doc)
		}
		resultado.Processados++
	}

	if opcoes.EnriquecerST && s.tributacao != nil {
		s.enriquecerLote(ctx, resultado.Documentos, opcoes)
	}

	agreg := novoAgregador()
	for i := range resultado.Documentos {
		agreg.Acumular(&resultado.Documentos[i])
	}
	resultado.ResumosNCM, resultado.ResumosMensais = agreg.Resumos()
	resultado.Lacunas = sequencia.Lacunas()

	if opcoes.Submeter && s.store != nil {
		sub := &submissor{store: s.store}
		insercao, avisos, err := sub.Submeter(ctx, resultado.Documentos)
		if err != nil {
			return nil, fmt.Errorf("erro ao submeter lote ao ledger: %w", err)
		}
		resultado.Avisos = append(resultado.Avisos, avisos...)
		s.log.Info("lote submetido ao ledger",
			zap.String("lote", resultado.LoteID),
			zap.Int("inseridos", insercao.Inseridos),
			zap.Int("falhas", insercao.Falhas),
			zap.Int("duplicadas", len(insercao.Duplicadas)))
	}

	resultado.TempoExecucao = s.agora().Sub(inicio).Round(time.Millisecond).String()
	resultado.Timestamp = s.agora()
	return resultado, nil
}

// processarArquivo classifica e extrai um XML. Devolve documentos ou um aviso
// de descarte, nunca os dois.
func (s *service) processarArquivo(arq domain.ArquivoEntrada, opcoes OpcoesLote) ([]*domain.DocumentoFiscal, *domain.Aviso) {
	raiz, err := parseNoXML(arq.Conteudo)
	if err != nil {
		s.log.Warn("arquivo ilegível", zap.String("arquivo", arq.Nome), zap.Error(err))
		return nil, &domain.Aviso{Arquivo: arq.Nome, Motivo: domain.MotivoNaoClassificado, Detalhe: err.Error()}
	}

	familia, ok := classificarDocumento(raiz)
	if !ok {
		if !opcoes.ForcarClassificacao {
			s.log.Warn("documento sem marcador de família", zap.String("arquivo", arq.Nome))
			return nil, &domain.Aviso{Arquivo: arq.Nome, Motivo: domain.MotivoNaoClassificado}
		}
		familia = domain.FamiliaNFe
	}

	var docs []*domain.DocumentoFiscal
	switch familia {
	case domain.FamiliaNFSe:
		docs, err = extrairNfse(arq, raiz, s.agora())
	default:
		var doc *domain.DocumentoFiscal
		doc, err = extrairNfe(arq, raiz, familia)
		if doc != nil {
			docs = []*domain.DocumentoFiscal{doc}
		}
	}
	if err != nil {
		s.log.Warn("documento descartado na extração",
			zap.String("arquivo", arq.Nome),
			zap.String("familia", string(familia)),
			zap.Error(err))
		return nil, &domain.Aviso{Arquivo: arq.Nome, Motivo: domain.MotivoSemEmitente, Detalhe: err.Error()}
	}
	return docs, nil
}

// enriquecerLote monta as consultas distintas de ST do lote inteiro e anexa
// os resultados aos itens. O par de UFs cai para o padrão configurado quando
// o documento não traz origem/destino.
func (s *service) enriquecerLote(ctx context.Context, docs []domain.DocumentoFiscal, opcoes OpcoesLote) {
	var consultas []tributacao.Consulta
	for i := range docs {
		for j := range docs[i].Itens {
			if consulta, ok := s.consultaItem(&docs[i], &docs[i].Itens[j], opcoes); ok {
				consultas = append(consultas, consulta)
			}
		}
	}
	if len(consultas) == 0 {
		return
	}

	resultados := s.tributacao.BuscarLote(ctx, consultas)
	for i := range docs {
		for j := range docs[i].Itens {
			if consulta, ok := s.consultaItem(&docs[i], &docs[i].Itens[j], opcoes); ok {
				if resultado, achou := resultados[tributacao.ChaveConsulta(consulta)]; achou {
					st := resultado
					docs[i].Itens[j].ST = &st
				}
			}
		}
	}
}

func (s *service) consultaItem(doc *domain.DocumentoFiscal, item *domain.ItemDocumento, opcoes OpcoesLote) (tributacao.Consulta, bool) {
	if item.NCM == "" {
		return tributacao.Consulta{}, false
	}
	origem := doc.UFOrigem
	if origem == "" {
		origem = opcoes.UFOrigemPadrao
	}
	destino := doc.UFDestino
	if destino == "" {
		destino = opcoes.UFDestinoPadrao
	}
	if origem == "" || destino == "" {
		return tributacao.Consulta{}, false
	}
	return tributacao.Consulta{
		NCM:       item.NCM,
		Descricao: item.Descricao,
		UFOrigem:  origem,
		UFDestino: destino,
	}, true
}
