package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"fiscal-service/internal/domain"
)

func abrirStoreTeste(t *testing.T) Store {
	t.Helper()
	store, err := Abrir(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("erro ao abrir ledger de teste: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func notaTeste(clienteID int64, chave string) NotaParaInserir {
	return NotaParaInserir{
		ClienteID: clienteID,
		Documento: domain.DocumentoFiscal{
			Familia:      domain.FamiliaNFe,
			CnpjEmitente: "12345678000100",
			Numero:       "123",
			Serie:        "1",
			DataEmissao:  "2024-05-10",
			ChaveAcesso:  chave,
			ValorTotal:   1500.00,
			Itens: []domain.ItemDocumento{
				{NCM: "84713012", Quantidade: 10, ValorUnitario: 150, ValorTotal: 1500},
			},
		},
	}
}

func TestClientes(t *testing.T) {
	ctx := context.Background()
	store := abrirStoreTeste(t)

	criado, err := store.CriarCliente(ctx, "99887766000155", "ACME SERVICOS LTDA")
	if err != nil {
		t.Fatalf("erro ao criar cliente: %v", err)
	}
	if criado.ID == 0 {
		t.Error("cliente criado deveria ter id")
	}

	achado, err := store.BuscarClientePorCnpj(ctx, "99887766000155")
	if err != nil {
		t.Fatalf("erro ao buscar cliente: %v", err)
	}
	if achado == nil || achado.ID != criado.ID || achado.Nome != "ACME SERVICOS LTDA" {
		t.Errorf("cliente errado: %+v", achado)
	}

	ausente, err := store.BuscarClientePorCnpj(ctx, "00000000000191")
	if err != nil {
		t.Fatalf("busca de ausente não deveria errar: %v", err)
	}
	if ausente != nil {
		t.Errorf("cliente inexistente deveria vir nil, veio %+v", ausente)
	}

	todos, err := store.ListarClientes(ctx)
	if err != nil {
		t.Fatalf("erro ao listar clientes: %v", err)
	}
	if len(todos) != 1 {
		t.Errorf("esperado 1 cliente, vieram %d", len(todos))
	}
}

func TestInserirNotasLoteDeduplicaPorClienteEChave(t *testing.T) {
	ctx := context.Background()
	store := abrirStoreTeste(t)

	a, err := store.CriarCliente(ctx, "99887766000155", "CLIENTE A")
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.CriarCliente(ctx, "11222333000144", "CLIENTE B")
	if err != nil {
		t.Fatal(err)
	}

	chave := "35240512345678000100550010000001231000012345"

	resultado, err := store.InserirNotasLote(ctx, []NotaParaInserir{notaTeste(a.ID, chave)})
	if err != nil {
		t.Fatalf("erro no primeiro insert: %v", err)
	}
	if resultado.Inseridos != 1 || len(resultado.Duplicadas) != 0 {
		t.Errorf("primeiro insert: %+v", resultado)
	}

	// mesma chave para o mesmo cliente é duplicada; para outro cliente, não
	resultado, err = store.InserirNotasLote(ctx, []NotaParaInserir{
		notaTeste(a.ID, chave),
		notaTeste(b.ID, chave),
	})
	if err != nil {
		t.Fatalf("erro no segundo insert: %v", err)
	}
	if resultado.Inseridos != 1 {
		t.Errorf("inseridos = %d, esperado 1", resultado.Inseridos)
	}
	if len(resultado.Duplicadas) != 1 || resultado.Duplicadas[0] != chave {
		t.Errorf("duplicadas = %v", resultado.Duplicadas)
	}
	if resultado.Falhas != 0 {
		t.Errorf("falhas = %d, esperado 0", resultado.Falhas)
	}
}

func TestInserirNotasLoteVazio(t *testing.T) {
	store := abrirStoreTeste(t)
	resultado, err := store.InserirNotasLote(context.Background(), nil)
	if err != nil {
		t.Fatalf("lote vazio não deveria errar: %v", err)
	}
	if resultado.Inseridos != 0 || resultado.Falhas != 0 {
		t.Errorf("resultado = %+v", resultado)
	}
}
