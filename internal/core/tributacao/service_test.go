package tributacao

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fiscal-service/internal/domain"

	"go.uber.org/zap"
)

type consultorFake struct {
	mu       sync.Mutex
	chamadas int32
	falhar   bool
	resposta *Resposta
}

func (f *consultorFake) ConsultarST(ctx context.Context, consulta Consulta) (*Resposta, error) {
	atomic.AddInt32(&f.chamadas, 1)
	if f.falhar {
		return nil, fmt.Errorf("serviço indisponível")
	}
	if f.resposta != nil {
		return f.resposta, nil
	}
	return &Resposta{
		TotalRegistros: 1,
		Registros:      []Registro{{MVA: 40.5, AliquotaInterestadual: 12.0, CEST: "0100100"}},
	}, nil
}

func abrirCacheTeste(t *testing.T) *Cache {
	t.Helper()
	cache, err := AbrirCache(filepath.Join(t.TempDir(), "cache_st.db"))
	if err != nil {
		t.Fatalf("erro ao abrir cache de teste: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func servicoTeste(cache *Cache, consultor Consultor, agora time.Time) *service {
	return &service{
		cache:        cache,
		consultor:    consultor,
		log:          zap.NewNop(),
		ttl:          TTLPadrao,
		concorrencia: 2,
		pausa:        time.Millisecond,
		agora:        func() time.Time { return agora },
		emVoo:        make(map[string]*chamadaEmVoo),
	}
}

func TestBuscarEntradaFrescaSaiDoCache(t *testing.T) {
	ctx := context.Background()
	cache := abrirCacheTeste(t)
	agora := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// entrada com 29 dias ainda é fresca
	resposta := &Resposta{Registros: []Registro{{MVA: 33.0, CEST: "0200200"}}}
	if err := cache.Gravar(ctx, "84713012", "SP", "RJ", resposta, agora.Add(-29*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	fake := &consultorFake{}
	svc := servicoTeste(cache, fake, agora)

	resultado := svc.Buscar(ctx, Consulta{NCM: "84713012", UFOrigem: "SP", UFDestino: "RJ"})
	if resultado.Origem != domain.OrigemCache {
		t.Errorf("origem = %q, esperado %q", resultado.Origem, domain.OrigemCache)
	}
	if resultado.MVA != 33.0 || resultado.CEST != "0200200" {
		t.Errorf("payload errado: %+v", resultado)
	}
	if atomic.LoadInt32(&fake.chamadas) != 0 {
		t.Error("entrada fresca não deveria disparar consulta remota")
	}
}

func TestBuscarEntradaVencidaConsultaRemoto(t *testing.T) {
	ctx := context.Background()
	cache := abrirCacheTeste(t)
	agora := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// entrada com 31 dias já venceu
	antiga := &Resposta{Registros: []Registro{{MVA: 33.0}}}
	if err := cache.Gravar(ctx, "84713012", "SP", "RJ", antiga, agora.Add(-31*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	fake := &consultorFake{}
	svc := servicoTeste(cache, fake, agora)

	resultado := svc.Buscar(ctx, Consulta{NCM: "84713012", UFOrigem: "SP", UFDestino: "RJ"})
	if resultado.Origem != domain.OrigemAPI {
		t.Errorf("origem = %q, esperado %q", resultado.Origem, domain.OrigemAPI)
	}
	if resultado.MVA != 40.5 {
		t.Errorf("MVA = %v, esperado o valor remoto", resultado.MVA)
	}
	if atomic.LoadInt32(&fake.chamadas) != 1 {
		t.Errorf("esperada 1 chamada remota, vieram %d", fake.chamadas)
	}

	// o refetch grava uma entrada nova que supera a vencida
	gravada, criadoEm, err := cache.Buscar(ctx, "84713012", "SP", "RJ")
	if err != nil {
		t.Fatal(err)
	}
	if gravada == nil || len(gravada.Registros) == 0 || gravada.Registros[0].MVA != 40.5 {
		t.Errorf("cache deveria ter a resposta nova: %+v", gravada)
	}
	if !criadoEm.Equal(agora) {
		t.Errorf("criadoEm = %v, esperado %v", criadoEm, agora)
	}
}

func TestBuscarFalhaRemotaViraNaoEncontrado(t *testing.T) {
	ctx := context.Background()
	cache := abrirCacheTeste(t)
	fake := &consultorFake{falhar: true}
	svc := servicoTeste(cache, fake, time.Now())

	resultado := svc.Buscar(ctx, Consulta{NCM: "84713012", UFOrigem: "SP", UFDestino: "RJ"})
	if resultado.Origem != domain.OrigemNaoEncontrada {
		t.Errorf("origem = %q, esperado %q", resultado.Origem, domain.OrigemNaoEncontrada)
	}

	// falha não pode poluir o cache
	gravada, _, err := cache.Buscar(ctx, "84713012", "SP", "RJ")
	if err != nil {
		t.Fatal(err)
	}
	if gravada != nil {
		t.Error("falha remota não deveria gravar entrada no cache")
	}
}

func TestBuscarLoteDeduplicaConsultas(t *testing.T) {
	ctx := context.Background()
	cache := abrirCacheTeste(t)
	fake := &consultorFake{}
	svc := servicoTeste(cache, fake, time.Now())

	consulta := Consulta{NCM: "84713012", UFOrigem: "SP", UFDestino: "RJ"}
	resultados := svc.BuscarLote(ctx, []Consulta{consulta, consulta, consulta})

	if len(resultados) != 1 {
		t.Fatalf("esperado 1 resultado, vieram %d", len(resultados))
	}
	if atomic.LoadInt32(&fake.chamadas) != 1 {
		t.Errorf("consultas repetidas deveriam virar 1 chamada remota, vieram %d", fake.chamadas)
	}
	if resultados[ChaveConsulta(consulta)].Origem != domain.OrigemAPI {
		t.Errorf("resultado errado: %+v", resultados[ChaveConsulta(consulta)])
	}
}

func TestBuscarLoteVariasChaves(t *testing.T) {
	ctx := context.Background()
	cache := abrirCacheTeste(t)
	fake := &consultorFake{}
	svc := servicoTeste(cache, fake, time.Now())

	consultas := []Consulta{
		{NCM: "84713012", UFOrigem: "SP", UFDestino: "RJ"},
		{NCM: "40169300", UFOrigem: "SP", UFDestino: "RJ"},
		{NCM: "84713012", UFOrigem: "RS", UFDestino: "SC"},
	}
	resultados := svc.BuscarLote(ctx, consultas)

	if len(resultados) != 3 {
		t.Fatalf("esperados 3 resultados, vieram %d", len(resultados))
	}
	for _, c := range consultas {
		if _, ok := resultados[ChaveConsulta(c)]; !ok {
			t.Errorf("resultado ausente para %q", ChaveConsulta(c))
		}
	}
	if atomic.LoadInt32(&fake.chamadas) != 3 {
		t.Errorf("esperadas 3 chamadas remotas, vieram %d", fake.chamadas)
	}
}

func TestBuscarConcorrenteCompartilhaChamada(t *testing.T) {
	ctx := context.Background()
	cache := abrirCacheTeste(t)

	liberar := make(chan struct{})
	fake := &consultorLento{liberar: liberar}
	svc := servicoTeste(cache, fake, time.Now())

	consulta := Consulta{NCM: "84713012", UFOrigem: "SP", UFDestino: "RJ"}
	var wg sync.WaitGroup
	resultados := make([]domain.SubstituicaoTributaria, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resultados[i] = svc.Buscar(ctx, consulta)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(liberar)
	wg.Wait()

	if got := atomic.LoadInt32(&fake.chamadas); got != 1 {
		t.Errorf("consultas em voo deveriam compartilhar 1 chamada remota, vieram %d", got)
	}
	for i, r := range resultados {
		if r.Origem != domain.OrigemAPI {
			t.Errorf("resultado %d com origem %q", i, r.Origem)
		}
	}
}

type consultorLento struct {
	chamadas int32
	liberar  chan struct{}
}

func (f *consultorLento) ConsultarST(ctx context.Context, consulta Consulta) (*Resposta, error) {
	atomic.AddInt32(&f.chamadas, 1)
	<-f.liberar
	return &Resposta{Registros: []Registro{{MVA: 40.5}}}, nil
}

func TestChaveConsulta(t *testing.T) {
	a := ChaveConsulta(Consulta{NCM: "84713012", UFOrigem: "SP", UFDestino: "RJ"})
	b := ChaveConsulta(Consulta{NCM: "84713012", UFOrigem: "SP", UFDestino: "RJ", Descricao: "outra"})
	if a != b {
		t.Error("a descrição não deveria entrar na chave de deduplicação")
	}
	c := ChaveConsulta(Consulta{NCM: "84713012", UFOrigem: "RS", UFDestino: "RJ"})
	if a == c {
		t.Error("pares de UF diferentes deveriam ter chaves diferentes")
	}
}
