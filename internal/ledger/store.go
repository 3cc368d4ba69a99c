// internal/ledger/store.go
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"fiscal-service/internal/domain"

	_ "modernc.org/sqlite"
)

const esquema = `
CREATE TABLE IF NOT EXISTS clientes (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	cnpj TEXT NOT NULL UNIQUE,
	nome TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS notas (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	cliente_id    INTEGER NOT NULL REFERENCES clientes(id),
	chave_acesso  TEXT NOT NULL,
	cnpj_emitente TEXT NOT NULL,
	numero        TEXT NOT NULL,
	serie         TEXT NOT NULL,
	data_emissao  TEXT NOT NULL,
	valor_total   REAL NOT NULL,
	cancelada     INTEGER NOT NULL DEFAULT 0,
	familia       TEXT NOT NULL,
	itens_json    TEXT NOT NULL,
	UNIQUE (cliente_id, chave_acesso)
);
CREATE INDEX IF NOT EXISTS idx_notas_emitente_numero
	ON notas (cnpj_emitente, numero);
`

// NotaParaInserir liga um documento extraído ao cliente resolvido.
type NotaParaInserir struct {
	ClienteID int64
	Documento domain.DocumentoFiscal
}

// Store é a fronteira com o ledger: consulta de contrapartes e insert em
// lote com rejeição de duplicadas por (cliente, chave de acesso).
type Store interface {
	BuscarClientePorCnpj(ctx context.Context, cnpj string) (*domain.Cliente, error)
	ListarClientes(ctx context.Context) ([]domain.Cliente, error)
	CriarCliente(ctx context.Context, cnpj, nome string) (*domain.Cliente, error)
	InserirNotasLote(ctx context.Context, notas []NotaParaInserir) (domain.ResultadoInsercao, error)
	Close() error
}

type store struct {
	db *sql.DB
}

// Abrir abre o banco do ledger no caminho dado, criando o esquema se preciso.
func Abrir(caminho string) (Store, error) {
	db, err := sql.Open("sqlite", caminho)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir ledger: %w", err)
	}
	if _, err := db.Exec(esquema); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao criar esquema do ledger: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

// BuscarClientePorCnpj devolve nil sem erro quando não há cliente.
func (s *store) BuscarClientePorCnpj(ctx context.Context, cnpj string) (*domain.Cliente, error) {
	linha := s.db.QueryRowContext(ctx, `SELECT id, cnpj, nome FROM clientes WHERE cnpj = ?`, cnpj)
	var c domain.Cliente
	if err := linha.Scan(&c.ID, &c.Cnpj, &c.Nome); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("erro ao buscar cliente: %w", err)
	}
	return &c, nil
}

func (s *store) ListarClientes(ctx context.Context) ([]domain.Cliente, error) {
	linhas, err := s.db.QueryContext(ctx, `SELECT id, cnpj, nome FROM clientes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar clientes: %w", err)
	}
	defer linhas.Close()

	var clientes []domain.Cliente
	for linhas.Next() {
		var c domain.Cliente
		if err := linhas.Scan(&c.ID, &c.Cnpj, &c.Nome); err != nil {
			return nil, fmt.Errorf("erro ao ler cliente: %w", err)
		}
		clientes = append(clientes, c)
	}
	return clientes, linhas.Err()
}

func (s *store) CriarCliente(ctx context.Context, cnpj, nome string) (*domain.Cliente, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO clientes (cnpj, nome) VALUES (?, ?)`, cnpj, nome)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar cliente: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter id do cliente: %w", err)
	}
	return &domain.Cliente{ID: id, Cnpj: cnpj, Nome: nome}, nil
}

// InserirNotasLote insere nota a nota, contabilizando duplicadas (violação do
// índice único) separadamente das falhas. Uma nota ruim não derruba o lote.
func (s *store) InserirNotasLote(ctx context.Context, notas []NotaParaInserir) (domain.ResultadoInsercao, error) {
	var resultado domain.ResultadoInsercao

	for _, nota := range notas {
		doc := nota.Documento
		itens, err := json.Marshal(doc.Itens)
		if err != nil {
			resultado.Falhas++
			continue
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO notas (cliente_id, chave_acesso, cnpj_emitente, numero, serie,
				data_emissao, valor_total, cancelada, familia, itens_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nota.ClienteID, doc.ChaveAcesso, doc.CnpjEmitente, doc.Numero, doc.Serie,
			doc.DataEmissao, doc.ValorTotal, doc.Cancelada, string(doc.Familia), string(itens))
		switch {
		case err == nil:
			resultado.Inseridos++
		case strings.Contains(err.Error(), "UNIQUE constraint failed"):
			resultado.Duplicadas = append(resultado.Duplicadas, doc.ChaveAcesso)
		default:
			resultado.Falhas++
		}
	}
	return resultado, nil
}
