// internal/core/tributacao/cache.go
package tributacao

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const esquemaCache = `
CREATE TABLE IF NOT EXISTS entradas_st (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ncm        TEXT NOT NULL,
	uf_origem  TEXT NOT NULL,
	uf_destino TEXT NOT NULL,
	payload    TEXT NOT NULL,
	criado_em  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entradas_st_chave
	ON entradas_st (ncm, uf_origem, uf_destino, criado_em DESC);
`

// Cache guarda respostas do serviço de ST em sqlite. Entradas nunca são
// alteradas: um refetch grava uma entrada nova que supera a anterior.
type Cache struct {
	db *sql.DB
}

// AbrirCache abre (criando se preciso) o banco do cache no caminho dado.
func AbrirCache(caminho string) (*Cache, error) {
	db, err := sql.Open("sqlite", caminho)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir cache de ST: %w", err)
	}
	if _, err := db.Exec(esquemaCache); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao criar esquema do cache de ST: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close libera o banco.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Buscar devolve a entrada mais recente para a chave, com a data de criação.
// A decisão de frescor fica com o serviço.
func (c *Cache) Buscar(ctx context.Context, ncm, ufOrigem, ufDestino string) (*Resposta, time.Time, error) {
	linha := c.db.QueryRowContext(ctx, `
		SELECT payload, criado_em FROM entradas_st
		WHERE ncm = ? AND uf_origem = ? AND uf_destino = ?
		ORDER BY criado_em DESC, id DESC LIMIT 1`,
		ncm, ufOrigem, ufDestino)

	var payload string
	var criadoEm time.Time
	if err := linha.Scan(&payload, &criadoEm); err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("erro ao ler cache de ST: %w", err)
	}

	var resposta Resposta
	if err := json.Unmarshal([]byte(payload), &resposta); err != nil {
		return nil, time.Time{}, fmt.Errorf("erro ao decodificar entrada do cache: %w", err)
	}
	return &resposta, criadoEm, nil
}

// Gravar insere uma entrada nova para a chave.
func (c *Cache) Gravar(ctx context.Context, ncm, ufOrigem, ufDestino string, resposta *Resposta, agora time.Time) error {
	payload, err := json.Marshal(resposta)
	if err != nil {
		return fmt.Errorf("erro ao serializar resposta de ST: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO entradas_st (ncm, uf_origem, uf_destino, payload, criado_em)
		VALUES (?, ?, ?, ?, ?)`,
		ncm, ufOrigem, ufDestino, string(payload), agora)
	if err != nil {
		return fmt.Errorf("erro ao gravar cache de ST: %w", err)
	}
	return nil
}
