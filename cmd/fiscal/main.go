// cmd/fiscal/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"fiscal-service/internal/api/handlers"
	"fiscal-service/internal/api/responses"
	"fiscal-service/internal/config"
	"fiscal-service/internal/core/fiscal"
	"fiscal-service/internal/core/planilha"
	"fiscal-service/internal/core/tributacao"
	"fiscal-service/internal/ledger"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "caminho do arquivo de configuração")
	flag.Parse()

	logger := responses.InitLogger()
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Falha ao carregar configuração: ", err)
	}

	store, err := ledger.Abrir(cfg.Ledger.Caminho)
	if err != nil {
		log.Fatal("Falha ao abrir o ledger: ", err)
	}
	defer store.Close()

	cache, err := tributacao.AbrirCache(cfg.Cache.Caminho)
	if err != nil {
		log.Fatal("Falha ao abrir o cache de ST: ", err)
	}
	defer cache.Close()

	consultor := tributacao.NewConsultorHTTP(cfg.Tributacao.URL, time.Duration(cfg.Tributacao.TimeoutSegundos)*time.Second)
	tributacaoService := tributacao.NewServiceComOpcoes(cache, consultor, logger, tributacao.Opcoes{
		TTL:          time.Duration(cfg.Cache.TTLDias) * 24 * time.Hour,
		Concorrencia: cfg.Tributacao.Concorrencia,
		Pausa:        time.Duration(cfg.Tributacao.PausaSegundos) * time.Second,
	})

	fiscalService := fiscal.NewService(logger, tributacaoService, store)
	planilhaService := planilha.NewService()

	opcoes := fiscal.OpcoesLote{
		ForcarClassificacao: cfg.Pipeline.ForcarClassificacao,
		UFOrigemPadrao:      cfg.Pipeline.UFOrigemPadrao,
		UFDestinoPadrao:     cfg.Pipeline.UFDestinoPadrao,
	}
	fiscalHandler := handlers.NewFiscalHandler(fiscalService, planilhaService, opcoes)

	router := gin.Default()

	apiV1 := router.Group("/api/v1")
	{
		// Sem Middleware -- Gateway lida com isso
		apiV1.POST("/fiscal/processar", fiscalHandler.HandleProcessarLote)
		apiV1.POST("/fiscal/planilha", fiscalHandler.HandleImportarPlanilha)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP", "service": "fiscal-service"})
	})

	porta := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("🚀 Fiscal Service (Go) iniciado e escutando na porta %d", cfg.Server.Port)
	if err := router.Run(porta); err != nil {
		log.Fatal("Falha ao iniciar o serviço fiscal: ", err)
	}
}
