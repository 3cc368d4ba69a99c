// internal/core/fiscal/extractor_nfse.go
package fiscal

import (
	"fmt"
	"time"

	"fiscal-service/internal/domain"
)

// camposNfse são os campos brutos (pré-normalização) que uma estratégia
// consegue ler de um dialeto. Campos vazios podem ser preenchidos por
// estratégias de prioridade menor.
type camposNfse struct {
	CnpjPrestador string
	NomePrestador string
	CnpjTomador   string
	NomeTomador   string
	Numero        string
	Serie         string
	DataEmissao   string
	Natureza      string
	UFPrestador   string
	UFTomador     string
	ValorServico  string
	ValorPis      string
	ValorCofins   string
	ValorCsll     string
	Descricao     string
	CodigoServico string
}

// estrategiaNfse é um dialeto de schema conhecido. A cadeia roda na ordem da
// lista: a primeira estratégia que devolve CNPJ do prestador vira a base e as
// seguintes só preenchem campos ainda vazios.
type estrategiaNfse struct {
	nome    string
	extrair func(no *noXML) camposNfse
}

var estrategiasNfse = []estrategiaNfse{
	{nome: "abrasf", extrair: extrairLayoutAbrasf},
	{nome: "nacional", extrair: extrairLayoutNacional},
	{nome: "declaracao", extrair: extrairLayoutDeclaracao},
	{nome: "municipal", extrair: extrairLayoutMunicipal},
}

// extrairLayoutAbrasf cobre o layout ABRASF 1.x (CompNfse/InfNfse).
func extrairLayoutAbrasf(no *noXML) camposNfse {
	inf := no.Busca("InfNfse")
	if inf == nil {
		return camposNfse{}
	}

	var c camposNfse
	c.Numero = inf.TextoDe("Numero")
	c.DataEmissao = inf.TextoDe("DataEmissao")
	c.CodigoServico = inf.TextoDe("ItemListaServico", "CodigoTributacaoMunicipio")
	c.Natureza = inf.TextoDe("NaturezaOperacao")

	if prest := inf.Busca("PrestadorServico", "Prestador"); prest != nil {
		c.CnpjPrestador = prest.TextoDe("Cnpj", "CpfCnpj")
		c.NomePrestador = prest.TextoDe("RazaoSocial", "NomeFantasia")
		if end := prest.Busca("Endereco"); end != nil {
			c.UFPrestador = end.TextoDe("Uf", "Estado")
		}
	}
	if tom := inf.Busca("TomadorServico", "Tomador"); tom != nil {
		c.CnpjTomador = tom.TextoDe("Cnpj", "Cpf", "CpfCnpj")
		c.NomeTomador = tom.TextoDe("RazaoSocial")
		if end := tom.Busca("Endereco"); end != nil {
			c.UFTomador = end.TextoDe("Uf", "Estado")
		}
	}
	if serv := inf.Busca("Servico"); serv != nil {
		c.Descricao = serv.TextoDe("Discriminacao")
		if c.CodigoServico == "" {
			c.CodigoServico = serv.TextoDe("ItemListaServico")
		}
		if valores := serv.Busca("Valores"); valores != nil {
			c.ValorServico = valores.TextoDe("ValorServicos", "ValorLiquidoNfse")
			c.ValorPis = valores.TextoDe("ValorPis")
			c.ValorCofins = valores.TextoDe("ValorCofins")
			c.ValorCsll = valores.TextoDe("ValorCsll")
		}
	}
	return c
}

// extrairLayoutNacional cobre o padrão nacional (NFSe/infNFSe com DPS).
func extrairLayoutNacional(no *noXML) camposNfse {
	inf := no.Busca("infNFSe")
	if inf == nil {
		return camposNfse{}
	}

	var c camposNfse
	c.Numero = inf.TextoDe("nNFSe")
	c.DataEmissao = inf.TextoDe("dhProc", "dhEmi")
	c.Serie = inf.TextoDe("serie")
	c.CodigoServico = inf.TextoDe("cTribNac", "cServ")

	if emit := inf.Busca("emit"); emit != nil {
		c.CnpjPrestador = emit.TextoDe("CNPJ")
		c.NomePrestador = emit.TextoDe("xNome")
		c.UFPrestador = emit.TextoDe("UF")
	}
	if toma := inf.Busca("toma"); toma != nil {
		c.CnpjTomador = toma.TextoDe("CNPJ", "CPF")
		c.NomeTomador = toma.TextoDe("xNome")
		c.UFTomador = toma.TextoDe("UF")
	}
	if serv := inf.Busca("serv"); serv != nil {
		c.Descricao = serv.TextoDe("xDescServ")
	}
	if valores := inf.Busca("valores"); valores != nil {
		c.ValorServico = valores.TextoDe("vServ", "vLiq")
		c.ValorPis = valores.TextoDe("vPis")
		c.ValorCofins = valores.TextoDe("vCofins")
		c.ValorCsll = valores.TextoDe("vCsll")
	}
	return c
}

// extrairLayoutDeclaracao cobre o envelope de declaração do ABRASF 2.x
// (InfDeclaracaoPrestacaoServico com o RPS embutido).
func extrairLayoutDeclaracao(no *noXML) camposNfse {
	decl := no.Busca("InfDeclaracaoPrestacaoServico", "DeclaracaoPrestacaoServico")
	if decl == nil {
		return camposNfse{}
	}

	var c camposNfse
	c.DataEmissao = decl.TextoDe("Competencia")

	if rps := decl.Busca("IdentificacaoRps"); rps != nil {
		c.Numero = rps.TextoDe("Numero")
		c.Serie = rps.TextoDe("Serie")
	}
	if prest := decl.Busca("Prestador"); prest != nil {
		c.CnpjPrestador = prest.TextoDe("Cnpj", "CpfCnpj")
		c.NomePrestador = prest.TextoDe("RazaoSocial")
	}
	if tom := decl.Busca("Tomador", "TomadorServico"); tom != nil {
		c.CnpjTomador = tom.TextoDe("Cnpj", "Cpf", "CpfCnpj")
		c.NomeTomador = tom.TextoDe("RazaoSocial")
	}
	if serv := decl.Busca("Servico"); serv != nil {
		c.Descricao = serv.TextoDe("Discriminacao")
		c.CodigoServico = serv.TextoDe("ItemListaServico")
		if valores := serv.Busca("Valores"); valores != nil {
			c.ValorServico = valores.TextoDe("ValorServicos")
			c.ValorPis = valores.TextoDe("ValorPis")
			c.ValorCofins = valores.TextoDe("ValorCofins")
			c.ValorCsll = valores.TextoDe("ValorCsll")
		}
	}
	return c
}

// extrairLayoutMunicipal cobre dialetos municipais achatados, que nomeiam os
// campos diretamente na raiz. O "Cnpj" solto fica por último entre os
// candidatos porque em layouts mistos ele pode ser o do tomador.
func extrairLayoutMunicipal(no *noXML) camposNfse {
	var c camposNfse
	c.CnpjPrestador = no.TextoDe("CnpjPrestador", "CNPJPrestador", "CnpjEmitente", "Cnpj")
	c.NomePrestador = no.TextoDe("RazaoSocialPrestador", "NomePrestador", "RazaoSocial")
	c.CnpjTomador = no.TextoDe("CnpjTomador", "CpfCnpjTomador", "CPFCNPJTomador")
	c.NomeTomador = no.TextoDe("RazaoSocialTomador", "NomeTomador")
	c.Numero = no.TextoDe("NumeroNota", "NumeroNfse", "NumNota", "Numero")
	c.Serie = no.TextoDe("SerieNota", "Serie")
	c.DataEmissao = no.TextoDe("DataEmissaoNfse", "DtEmissao", "DataEmissao")
	c.ValorServico = no.TextoDe("ValorNota", "ValorServicos", "ValorTotalNota", "ValorTotal")
	c.ValorPis = no.TextoDe("ValorPis", "VlPis")
	c.ValorCofins = no.TextoDe("ValorCofins", "VlCofins")
	c.ValorCsll = no.TextoDe("ValorCsll", "VlCsll")
	c.Descricao = no.TextoDe("DiscriminacaoServico", "Discriminacao", "DescricaoServico")
	c.CodigoServico = no.TextoDe("CodigoServico", "ItemListaServico")
	c.UFPrestador = no.TextoDe("UfPrestador")
	c.UFTomador = no.TextoDe("UfTomador")
	return c
}

// preencherVazios completa os campos vazios da base com os da próxima
// estratégia; campos já resolvidos nunca são sobrescritos.
func preencherVazios(base *camposNfse, extra camposNfse) {
	campos := []struct {
		destino *string
		origem  string
	}{
		{&base.NomePrestador, extra.NomePrestador},
		{&base.CnpjTomador, extra.CnpjTomador},
		{&base.NomeTomador, extra.NomeTomador},
		{&base.Numero, extra.Numero},
		{&base.Serie, extra.Serie},
		{&base.DataEmissao, extra.DataEmissao},
		{&base.Natureza, extra.Natureza},
		{&base.UFPrestador, extra.UFPrestador},
		{&base.UFTomador, extra.UFTomador},
		{&base.ValorServico, extra.ValorServico},
		{&base.ValorPis, extra.ValorPis},
		{&base.ValorCofins, extra.ValorCofins},
		{&base.ValorCsll, extra.ValorCsll},
		{&base.Descricao, extra.Descricao},
		{&base.CodigoServico, extra.CodigoServico},
	}
	for _, campo := range campos {
		if *campo.destino == "" {
			*campo.destino = campo.origem
		}
	}
}

// nosDocumentoNfse separa envelopes com várias notas embutidas (respostas de
// lote das prefeituras). Com uma nota só, o documento inteiro é o envelope.
func nosDocumentoNfse(raiz *noXML) []*noXML {
	for _, marcador := range []string{"CompNfse", "InfNfse", "infNFSe"} {
		if nos := raiz.BuscaTodos(marcador); len(nos) > 1 {
			return nos
		}
	}
	return []*noXML{raiz}
}

// extrairNfse roda a cadeia de estratégias sobre cada nota do envelope e
// emite um DocumentoFiscal por nota. Nota sem CNPJ de prestador em nenhuma
// estratégia é descartada; envelope inteiro sem nota válida vira erro.
func extrairNfse(arq domain.ArquivoEntrada, raiz *noXML, agora time.Time) ([]*domain.DocumentoFiscal, error) {
	var docs []*domain.DocumentoFiscal

	for _, no := range nosDocumentoNfse(raiz) {
		resultados := make([]camposNfse, len(estrategiasNfse))
		for i, e := range estrategiasNfse {
			resultados[i] = e.extrair(no)
		}

		base := -1
		for i := range resultados {
			if resultados[i].CnpjPrestador != "" {
				base = i
				break
			}
		}
		if base == -1 {
			continue
		}

		campos := resultados[base]
		for i := base + 1; i < len(resultados); i++ {
			preencherVazios(&campos, resultados[i])
		}

		docs = append(docs, montarDocumentoNfse(arq, no, campos, agora))
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("nenhuma estratégia extraiu o CNPJ do prestador")
	}
	return docs, nil
}

func montarDocumentoNfse(arq domain.ArquivoEntrada, no *noXML, campos camposNfse, agora time.Time) *domain.DocumentoFiscal {
	data, dataOk := normalizarData(campos.DataEmissao)
	valorServico := parseValorBR(campos.ValorServico)

	doc := &domain.DocumentoFiscal{
		Familia:          domain.FamiliaNFSe,
		Arquivo:          arq.Nome,
		CnpjEmitente:     normalizarCnpj(campos.CnpjPrestador),
		NomeEmitente:     campos.NomePrestador,
		CnpjTomador:      normalizarCnpj(campos.CnpjTomador),
		NomeTomador:      campos.NomeTomador,
		Numero:           campos.Numero,
		Serie:            campos.Serie,
		DataEmissao:      data,
		DataParaRevisao:  campos.DataEmissao != "" && !dataOk,
		NaturezaOperacao: campos.Natureza,
		UFOrigem:         campos.UFPrestador,
		UFDestino:        campos.UFTomador,
		ValorTotal:       valorServico,
	}
	if doc.CnpjTomador == "" {
		doc.CnpjTomador = domain.CnpjGenerico
		doc.NomeTomador = domain.NomeTomadorGenerico
	}
	if doc.NomeTomador == "" {
		doc.NomeTomador = domain.NomeTomadorGenerico
	}
	if doc.UFDestino == "" {
		doc.UFDestino = doc.UFOrigem
	}

	// serviço vira um item único de quantidade 1
	doc.Itens = []domain.ItemDocumento{{
		NCM:           campos.CodigoServico,
		Descricao:     campos.Descricao,
		Quantidade:    1,
		ValorUnitario: valorServico,
		ValorTotal:    valorServico,
		ValorPIS:      parseValorBR(campos.ValorPis),
		ValorCOFINS:   parseValorBR(campos.ValorCofins),
		ValorCSLL:     parseValorBR(campos.ValorCsll),
	}}

	retencao := detectarRetencao(no)
	doc.ISSRetido = retencao.Retido
	if retencao.TemValor {
		doc.ValorISSRetido = retencao.Valor
	}

	doc.ChaveAcesso = sintetizarChaveNfse(doc.CnpjEmitente, doc.Numero, doc.DataEmissao, agora)

	if documentoCancelado(no) {
		zerarValores(doc)
	}
	return doc
}
