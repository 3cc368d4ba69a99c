package fiscal

import (
	"context"
	"testing"

	"fiscal-service/internal/core/tributacao"
	"fiscal-service/internal/domain"

	"go.uber.org/zap"
)

type tributacaoFake struct {
	consultas []tributacao.Consulta
}

func (f *tributacaoFake) Buscar(ctx context.Context, c tributacao.Consulta) domain.SubstituicaoTributaria {
	f.consultas = append(f.consultas, c)
	return domain.SubstituicaoTributaria{Origem: domain.OrigemAPI, MVA: 40.5}
}

func (f *tributacaoFake) BuscarLote(ctx context.Context, consultas []tributacao.Consulta) map[string]domain.SubstituicaoTributaria {
	resultados := make(map[string]domain.SubstituicaoTributaria)
	for _, c := range consultas {
		resultados[tributacao.ChaveConsulta(c)] = f.Buscar(ctx, c)
	}
	return resultados
}

func TestProcessarLote(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, nil)

	arquivos := []domain.ArquivoEntrada{
		{Nome: "nota.xml", Conteudo: []byte(xmlNfe("100"))},
		{Nome: "servico.xml", Conteudo: []byte(xmlAbrasf)},
		{Nome: "planilha.txt", Conteudo: []byte("nao sou xml")},
	}

	resultado, err := svc.ProcessarLote(context.Background(), arquivos, OpcoesLote{})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}

	if resultado.LoteID == "" {
		t.Error("lote deveria receber um identificador")
	}
	// o .txt nem entra na contagem: a expansão só devolve XMLs
	if resultado.Total != 2 || resultado.Processados != 2 || resultado.Descartados != 0 {
		t.Errorf("contadores errados: total=%d processados=%d descartados=%d",
			resultado.Total, resultado.Processados, resultado.Descartados)
	}
	if len(resultado.Documentos) != 2 {
		t.Fatalf("esperados 2 documentos, vieram %d", len(resultado.Documentos))
	}

	nfe := resultado.Documentos[0]
	if nfe.Familia != domain.FamiliaNFe || nfe.ValorTotal != 1500.00 {
		t.Errorf("NF-e errada: %+v", nfe)
	}
	if nfe.Itens[0].ValorTotal != 1500.00 {
		t.Errorf("valor do item = %v, esperado 1500.00", nfe.Itens[0].ValorTotal)
	}

	nfse := resultado.Documentos[1]
	if nfse.Familia != domain.FamiliaNFSe || !nfse.ISSRetido {
		t.Errorf("NFS-e errada: %+v", nfse)
	}

	if len(resultado.ResumosNCM) != 2 {
		t.Errorf("esperados 2 resumos de NCM, vieram %d", len(resultado.ResumosNCM))
	}
	if len(resultado.Lacunas) != 0 {
		t.Errorf("lote sem lacunas deveria reportar lista vazia, veio %v", resultado.Lacunas)
	}
	if resultado.TempoExecucao == "" {
		t.Error("tempo de execução deveria estar preenchido")
	}
}

func TestProcessarLoteSemXML(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, nil)
	_, err := svc.ProcessarLote(context.Background(), []domain.ArquivoEntrada{
		{Nome: "leiame.txt", Conteudo: []byte("nada")},
	}, OpcoesLote{})
	if err == nil {
		t.Error("envio sem nenhum XML deveria ser erro")
	}
}

func TestProcessarLoteDocumentoRuimNaoDerrubaOLote(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, nil)

	arquivos := []domain.ArquivoEntrada{
		{Nome: "boa.xml", Conteudo: []byte(xmlNfe("100"))},
		{Nome: "quebrada.xml", Conteudo: []byte("<<< isso nao é xml")},
		{Nome: "desconhecida.xml", Conteudo: []byte("<recibo><numero>1</numero></recibo>")},
	}

	resultado, err := svc.ProcessarLote(context.Background(), arquivos, OpcoesLote{})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if resultado.Processados != 1 || resultado.Descartados != 2 {
		t.Errorf("contadores errados: processados=%d descartados=%d",
			resultado.Processados, resultado.Descartados)
	}
	if len(resultado.Avisos) != 2 {
		t.Fatalf("esperados 2 avisos, vieram %d", len(resultado.Avisos))
	}
	for _, aviso := range resultado.Avisos {
		if aviso.Motivo != domain.MotivoNaoClassificado {
			t.Errorf("motivo = %q, esperado %q", aviso.Motivo, domain.MotivoNaoClassificado)
		}
	}
}

func TestProcessarLoteClassificacaoForcada(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, nil)
	arquivos := []domain.ArquivoEntrada{
		{Nome: "boa.xml", Conteudo: []byte(xmlNfe("100"))},
		{Nome: "desconhecida.xml", Conteudo: []byte("<recibo><numero>1</numero></recibo>")},
	}

	resultado, err := svc.ProcessarLote(context.Background(), arquivos, OpcoesLote{ForcarClassificacao: true})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	// no modo forçado o documento entra no extrator de NF-e e cai por falta
	// de emitente, não por classificação
	if len(resultado.Avisos) != 1 || resultado.Avisos[0].Motivo != domain.MotivoSemEmitente {
		t.Errorf("avisos = %+v", resultado.Avisos)
	}
}

func TestProcessarLoteDetectaLacunas(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, nil)

	nota := func(numero, chaveSufixo string) domain.ArquivoEntrada {
		xml := `<NFe><infNFe Id="NFe352405123456780001005500100000001` + chaveSufixo + `">
			<ide><mod>55</mod><serie>1</serie><nNF>` + numero + `</nNF><dhEmi>2024-05-10T08:30:00-03:00</dhEmi></ide>
			<emit><CNPJ>12345678000100</CNPJ><xNome>EMITENTE</xNome><enderEmit><UF>SP</UF></enderEmit></emit>
			<total><ICMSTot><vNF>10.00</vNF></ICMSTot></total>
		</infNFe></NFe>`
		return domain.ArquivoEntrada{Nome: "nota" + numero + ".xml", Conteudo: []byte(xml)}
	}

	resultado, err := svc.ProcessarLote(context.Background(), []domain.ArquivoEntrada{
		nota("1", "231000012341"), nota("2", "231000012342"),
		nota("4", "231000012344"), nota("7", "231000012347"),
	}, OpcoesLote{})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}

	if len(resultado.Lacunas) != 1 {
		t.Fatalf("esperada 1 lacuna, vieram %d", len(resultado.Lacunas))
	}
	lacuna := resultado.Lacunas[0]
	if lacuna.CnpjEmitente != "12345678000100" || lacuna.Serie != "1" {
		t.Errorf("lacuna na chave errada: %+v", lacuna)
	}
	if len(lacuna.NumerosPulados) != 3 ||
		lacuna.NumerosPulados[0] != 3 || lacuna.NumerosPulados[1] != 5 || lacuna.NumerosPulados[2] != 6 {
		t.Errorf("números pulados = %v, esperado [3 5 6]", lacuna.NumerosPulados)
	}
}

func TestProcessarLoteEnriquecimentoST(t *testing.T) {
	fake := &tributacaoFake{}
	svc := NewService(zap.NewNop(), fake, nil)

	resultado, err := svc.ProcessarLote(context.Background(), []domain.ArquivoEntrada{
		{Nome: "nota.xml", Conteudo: []byte(xmlNfe("100"))},
	}, OpcoesLote{EnriquecerST: true})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}

	item := resultado.Documentos[0].Itens[0]
	if item.ST == nil {
		t.Fatal("item deveria ter sido enriquecido com ST")
	}
	if item.ST.Origem != domain.OrigemAPI || item.ST.MVA != 40.5 {
		t.Errorf("enriquecimento errado: %+v", item.ST)
	}
	if len(fake.consultas) != 1 {
		t.Fatalf("esperada 1 consulta, vieram %d", len(fake.consultas))
	}
	if fake.consultas[0].NCM != "84713012" || fake.consultas[0].UFOrigem != "SP" || fake.consultas[0].UFDestino != "RJ" {
		t.Errorf("consulta errada: %+v", fake.consultas[0])
	}
}

func TestProcessarLoteEnriquecimentoUsaUFPadrao(t *testing.T) {
	fake := &tributacaoFake{}
	svc := NewService(zap.NewNop(), fake, nil)

	// NFS-e sem UF no XML: o par configurado entra no lugar
	semUF := `<CompNfse><Nfse><InfNfse>
		<Numero>1</Numero>
		<PrestadorServico><Cnpj>12345678000100</Cnpj></PrestadorServico>
		<Servico><Valores><ValorServicos>100,00</ValorServicos></Valores><ItemListaServico>1.05</ItemListaServico></Servico>
	</InfNfse></Nfse></CompNfse>`

	_, err := svc.ProcessarLote(context.Background(), []domain.ArquivoEntrada{
		{Nome: "servico.xml", Conteudo: []byte(semUF)},
	}, OpcoesLote{EnriquecerST: true, UFOrigemPadrao: "RS", UFDestinoPadrao: "RS"})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}

	if len(fake.consultas) != 1 {
		t.Fatalf("esperada 1 consulta, vieram %d", len(fake.consultas))
	}
	if fake.consultas[0].UFOrigem != "RS" || fake.consultas[0].UFDestino != "RS" {
		t.Errorf("UFs padrão não aplicadas: %+v", fake.consultas[0])
	}
}
