// internal/core/fiscal/extractor_nfe.go
package fiscal

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"fiscal-service/internal/domain"
)

// decodificarNfe tenta o envelope nfeProc e cai para a raiz <NFe> crua.
func decodificarNfe(conteudo []byte) (domain.InfNFe, string, error) {
	var proc domain.NFeProc
	dec := xml.NewDecoder(bytes.NewReader(conteudo))
	dec.CharsetReader = leitorCharset
	if err := dec.Decode(&proc); err == nil && proc.NFe.InfNFe.Emit.CNPJ != "" {
		return proc.NFe.InfNFe, proc.ProtNFe.InfProt.CStat, nil
	}

	var nfe domain.NFeXML
	dec = xml.NewDecoder(bytes.NewReader(conteudo))
	dec.CharsetReader = leitorCharset
	if err := dec.Decode(&nfe); err != nil {
		return domain.InfNFe{}, "", fmt.Errorf("falha ao fazer parse da NF-e: %w", err)
	}
	return nfe.InfNFe, "", nil
}

// Códigos de situação do protocolo que indicam nota cancelada.
func statusCancelado(cStat string) bool {
	switch cStat {
	case "101", "135", "151", "155":
		return true
	}
	return false
}

// extrairNfe converte uma NF-e ou NFC-e para a forma canônica, com um item
// por <det> e tributos lidos do primeiro grupo preenchido de cada imposto.
func extrairNfe(arq domain.ArquivoEntrada, raiz *noXML, familia domain.FamiliaDocumento) (*domain.DocumentoFiscal, error) {
	inf, cStat, err := decodificarNfe(arq.Conteudo)
	if err != nil {
		return nil, err
	}

	cnpjEmitente := normalizarCnpj(inf.Emit.CNPJ)
	if cnpjEmitente == "" {
		return nil, fmt.Errorf("nota sem CNPJ do emitente")
	}

	doc := &domain.DocumentoFiscal{
		Familia:          familia,
		Arquivo:          arq.Nome,
		CnpjEmitente:     cnpjEmitente,
		NomeEmitente:     inf.Emit.XNome,
		Numero:           inf.Ide.NNF,
		Serie:            inf.Ide.Serie,
		NaturezaOperacao: inf.Ide.NatOp,
		Modelo:           inf.Ide.Mod,
		UFOrigem:         inf.Emit.EnderEmit.UF,
		UFDestino:        inf.Dest.EnderDest.UF,
		ChaveAcesso:      extrairChaveNfe(raiz),
		ValorTotal:       parseValorBR(inf.Total.ICMSTot.VNF),
	}
	if doc.UFDestino == "" {
		doc.UFDestino = doc.UFOrigem
	}

	dataBruta := inf.Ide.DhEmi
	if dataBruta == "" {
		dataBruta = inf.Ide.DEmi
	}
	data, ok := normalizarData(dataBruta)
	doc.DataEmissao = data
	doc.DataParaRevisao = dataBruta != "" && !ok

	switch {
	case inf.Dest.CNPJ != "" || inf.Dest.CPF != "":
		tomador := inf.Dest.CNPJ
		if tomador == "" {
			tomador = inf.Dest.CPF
		}
		doc.CnpjTomador = normalizarCnpj(tomador)
		doc.NomeTomador = inf.Dest.XNome
	default:
		doc.CnpjTomador = domain.CnpjGenerico
		doc.NomeTomador = domain.NomeTomadorGenerico
	}
	if doc.NomeTomador == "" {
		doc.NomeTomador = domain.NomeTomadorGenerico
	}

	for _, det := range inf.Det {
		quantidade := parseValorBR(det.Prod.QCom)
		valorUnitario := parseValorBR(det.Prod.VUnCom)
		valorTotal := parseValorBR(det.Prod.VProd)
		if valorTotal == 0 {
			valorTotal = arredonda(quantidade*valorUnitario, 2)
		}

		valorPIS := parseValorBR(det.Imposto.PIS.PISAliq.VPIS)
		cstPIS := det.Imposto.PIS.PISAliq.CST
		if valorPIS == 0 && det.Imposto.PIS.PISOutr.VPIS != "" {
			valorPIS = parseValorBR(det.Imposto.PIS.PISOutr.VPIS)
			cstPIS = det.Imposto.PIS.PISOutr.CST
		}
		valorCOFINS := parseValorBR(det.Imposto.COFINS.COFINSAliq.VCOFINS)
		cstCOFINS := det.Imposto.COFINS.COFINSAliq.CST
		if valorCOFINS == 0 && det.Imposto.COFINS.COFINSOutr.VCOFINS != "" {
			valorCOFINS = parseValorBR(det.Imposto.COFINS.COFINSOutr.VCOFINS)
			cstCOFINS = det.Imposto.COFINS.COFINSOutr.CST
		}

		doc.Itens = append(doc.Itens, domain.ItemDocumento{
			NCM:           det.Prod.NCM,
			CFOP:          det.Prod.CFOP,
			Descricao:     det.Prod.XProd,
			Quantidade:    quantidade,
			ValorUnitario: valorUnitario,
			ValorTotal:    valorTotal,
			ValorPIS:      valorPIS,
			ValorCOFINS:   valorCOFINS,
			CSTICMS:       det.Imposto.ICMS.CST(),
			CSTPIS:        cstPIS,
			CSTCOFINS:     cstCOFINS,
		})
	}

	if statusCancelado(cStat) || documentoCancelado(raiz) {
		zerarValores(doc)
	}
	return doc, nil
}
