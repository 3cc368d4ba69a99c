// internal/core/tributacao/service.go
package tributacao

import (
	"context"
	"sync"
	"time"

	"fiscal-service/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TTLPadrao é a validade de uma entrada do cache: 30 dias.
const TTLPadrao = 30 * 24 * time.Hour

// Limites do modo lote, acertados com o provedor do serviço remoto.
const (
	concorrenciaPadrao = 5
	pausaPadrao        = time.Second
)

// Service resolve substituição tributária por (NCM, UF origem, UF destino),
// servindo do cache quando fresco e consultando o serviço remoto no resto.
type Service interface {
	Buscar(ctx context.Context, consulta Consulta) domain.SubstituicaoTributaria
	BuscarLote(ctx context.Context, consultas []Consulta) map[string]domain.SubstituicaoTributaria
}

type chamadaEmVoo struct {
	pronto    chan struct{}
	resultado domain.SubstituicaoTributaria
}

type service struct {
	cache        *Cache
	consultor    Consultor
	log          *zap.Logger
	ttl          time.Duration
	concorrencia int
	pausa        time.Duration
	agora        func() time.Time

	mu    sync.Mutex
	emVoo map[string]*chamadaEmVoo
}

// Opcoes ajusta os limites do serviço. Campo zero usa o padrão.
type Opcoes struct {
	TTL          time.Duration
	Concorrencia int
	Pausa        time.Duration
}

// NewService cria o serviço de enriquecimento com os limites padrão.
func NewService(cache *Cache, consultor Consultor, log *zap.Logger) Service {
	return NewServiceComOpcoes(cache, consultor, log, Opcoes{})
}

// NewServiceComOpcoes cria o serviço com limites vindos da configuração.
func NewServiceComOpcoes(cache *Cache, consultor Consultor, log *zap.Logger, opcoes Opcoes) Service {
	s := &service{
		cache:        cache,
		consultor:    consultor,
		log:          log,
		ttl:          TTLPadrao,
		concorrencia: concorrenciaPadrao,
		pausa:        pausaPadrao,
		agora:        time.Now,
		emVoo:        make(map[string]*chamadaEmVoo),
	}
	if opcoes.TTL > 0 {
		s.ttl = opcoes.TTL
	}
	if opcoes.Concorrencia > 0 {
		s.concorrencia = opcoes.Concorrencia
	}
	if opcoes.Pausa > 0 {
		s.pausa = opcoes.Pausa
	}
	return s
}

// ChaveConsulta identifica uma consulta para deduplicação e para o mapa de
// resultados do modo lote.
func ChaveConsulta(c Consulta) string {
	return c.NCM + "|" + c.UFOrigem + "|" + c.UFDestino
}

// Buscar aplica cache-ou-consulta: entrada fresca sai como "cache", refetch
// bem-sucedido sai como "api" e falha remota vira "not_found" — nunca erro
// fatal. Consultas idênticas em voo compartilham o mesmo resultado.
func (s *service) Buscar(ctx context.Context, consulta Consulta) domain.SubstituicaoTributaria {
	chave := ChaveConsulta(consulta)

	s.mu.Lock()
	if voo, ok := s.emVoo[chave]; ok {
		s.mu.Unlock()
		select {
		case <-voo.pronto:
			return voo.resultado
		case <-ctx.Done():
			return domain.SubstituicaoTributaria{Origem: domain.OrigemNaoEncontrada}
		}
	}
	voo := &chamadaEmVoo{pronto: make(chan struct{})}
	s.emVoo[chave] = voo
	s.mu.Unlock()

	resultado := s.buscarDireto(ctx, consulta)

	s.mu.Lock()
	voo.resultado = resultado
	delete(s.emVoo, chave)
	s.mu.Unlock()
	close(voo.pronto)

	return resultado
}

func (s *service) buscarDireto(ctx context.Context, consulta Consulta) domain.SubstituicaoTributaria {
	agora := s.agora()

	resposta, criadoEm, err := s.cache.Buscar(ctx, consulta.NCM, consulta.UFOrigem, consulta.UFDestino)
	if err != nil {
		s.log.Warn("erro ao ler cache de ST", zap.String("ncm", consulta.NCM), zap.Error(err))
	}
	if resposta != nil && agora.Sub(criadoEm) < s.ttl {
		return montarResultado(resposta, domain.OrigemCache)
	}

	remota, err := s.consultor.ConsultarST(ctx, consulta)
	if err != nil {
		s.log.Warn("consulta remota de ST falhou",
			zap.String("ncm", consulta.NCM),
			zap.String("uf_origem", consulta.UFOrigem),
			zap.String("uf_destino", consulta.UFDestino),
			zap.Error(err))
		return domain.SubstituicaoTributaria{Origem: domain.OrigemNaoEncontrada}
	}

	if err := s.cache.Gravar(ctx, consulta.NCM, consulta.UFOrigem, consulta.UFDestino, remota, agora); err != nil {
		s.log.Warn("erro ao gravar cache de ST", zap.String("ncm", consulta.NCM), zap.Error(err))
	}
	return montarResultado(remota, domain.OrigemAPI)
}

func montarResultado(resposta *Resposta, origem domain.OrigemST) domain.SubstituicaoTributaria {
	resultado := domain.SubstituicaoTributaria{Origem: origem}
	if len(resposta.Registros) > 0 {
		primeiro := resposta.Registros[0]
		resultado.MVA = primeiro.MVA
		resultado.AliquotaInterestadual = primeiro.AliquotaInterestadual
		resultado.CEST = primeiro.CEST
		resultado.Descricao = primeiro.Descricao
	}
	return resultado
}

type parUF struct {
	origem  string
	destino string
}

// BuscarLote agrupa as consultas por par de UFs e processa cada grupo em
// sub-lotes de 5 consultas concorrentes, com pausa de 1 segundo entre
// sub-lotes para respeitar o rate limit do provedor. Consultas repetidas são
// deduplicadas pela chave antes do disparo.
func (s *service) BuscarLote(ctx context.Context, consultas []Consulta) map[string]domain.SubstituicaoTributaria {
	grupos := make(map[parUF][]Consulta)
	vistos := make(map[string]bool)
	for _, c := range consultas {
		chave := ChaveConsulta(c)
		if vistos[chave] {
			continue
		}
		vistos[chave] = true
		par := parUF{origem: c.UFOrigem, destino: c.UFDestino}
		grupos[par] = append(grupos[par], c)
	}

	resultados := make(map[string]domain.SubstituicaoTributaria, len(vistos))
	var muResultados sync.Mutex

	primeiro := true
	for _, grupo := range grupos {
		for inicio := 0; inicio < len(grupo); inicio += s.concorrencia {
			fim := inicio + s.concorrencia
			if fim > len(grupo) {
				fim = len(grupo)
			}

			if !primeiro {
				select {
				case <-time.After(s.pausa):
				case <-ctx.Done():
					return resultados
				}
			}
			primeiro = false

			g, gctx := errgroup.WithContext(ctx)
			for _, consulta := range grupo[inicio:fim] {
				consulta := consulta
				g.Go(func() error {
					resultado := s.Buscar(gctx, consulta)
					muResultados.Lock()
					resultados[ChaveConsulta(consulta)] = resultado
					muResultados.Unlock()
					return nil
				})
			}
			g.Wait()
		}
	}
	return resultados
}
