// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config é a configuração do serviço, carregada de um arquivo yaml.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Cache      CacheConfig      `yaml:"cache"`
	Tributacao TributacaoConfig `yaml:"tributacao"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LedgerConfig struct {
	Caminho string `yaml:"caminho"`
}

type CacheConfig struct {
	Caminho string `yaml:"caminho"`
	TTLDias int    `yaml:"ttl_dias"`
}

type TributacaoConfig struct {
	URL             string `yaml:"url"`
	TimeoutSegundos int    `yaml:"timeout_segundos"`
	Concorrencia    int    `yaml:"concorrencia"`
	PausaSegundos   int    `yaml:"pausa_segundos"`
}

type PipelineConfig struct {
	UFOrigemPadrao      string `yaml:"uf_origem_padrao"`
	UFDestinoPadrao     string `yaml:"uf_destino_padrao"`
	ForcarClassificacao bool   `yaml:"forcar_classificacao"`
}

// Load lê e valida o arquivo de configuração. A URL do serviço de ST pode
// vir do ambiente (TRIBUTACAO_URL) para não ficar em arquivo.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler configuração: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("erro ao interpretar configuração: %w", err)
	}

	if env := os.Getenv("TRIBUTACAO_URL"); env != "" {
		cfg.Tributacao.URL = env
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8084
	}
	if cfg.Ledger.Caminho == "" {
		cfg.Ledger.Caminho = "ledger.db"
	}
	if cfg.Cache.Caminho == "" {
		cfg.Cache.Caminho = "cache_st.db"
	}
	if cfg.Cache.TTLDias == 0 {
		cfg.Cache.TTLDias = 30
	}
	if cfg.Tributacao.TimeoutSegundos == 0 {
		cfg.Tributacao.TimeoutSegundos = 30
	}
	if cfg.Tributacao.Concorrencia == 0 {
		cfg.Tributacao.Concorrencia = 5
	}
	if cfg.Tributacao.PausaSegundos == 0 {
		cfg.Tributacao.PausaSegundos = 1
	}
	return &cfg, nil
}
