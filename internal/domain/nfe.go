// internal/domain/nfe.go
package domain

import "encoding/xml"

// NFeProc representa a raiz de uma NF-e/NFC-e processada (nfeProc).
type NFeProc struct {
	XMLName xml.Name `xml:"nfeProc"`
	NFe     NFeXML   `xml:"NFe"`
	ProtNFe struct {
		InfProt struct {
			ChNFe string `xml:"chNFe"`
			CStat string `xml:"cStat"`
		} `xml:"infProt"`
	} `xml:"protNFe"`
}

// NFeXML representa o nó <NFe>. Também serve de raiz para XMLs sem envelope.
type NFeXML struct {
	XMLName xml.Name `xml:"NFe"`
	InfNFe  InfNFe   `xml:"infNFe"`
}

// InfNFe representa o nó <infNFe>.
type InfNFe struct {
	ID    string   `xml:"Id,attr"`
	Ide   IdeXML   `xml:"ide"`
	Emit  EmitXML  `xml:"emit"`
	Dest  DestXML  `xml:"dest"`
	Det   []DetXML `xml:"det"`
	Total TotalXML `xml:"total"`
}

// IdeXML representa o nó <ide> (identificação da nota).
type IdeXML struct {
	NNF    string `xml:"nNF"`
	Serie  string `xml:"serie"`
	Mod    string `xml:"mod"`
	NatOp  string `xml:"natOp"`
	DhEmi  string `xml:"dhEmi"`
	DEmi   string `xml:"dEmi"`
	CUF    string `xml:"cUF"`
	TpEmis string `xml:"tpEmis"`
}

// EmitXML representa o emitente.
type EmitXML struct {
	CNPJ      string `xml:"CNPJ"`
	XNome     string `xml:"xNome"`
	EnderEmit struct {
		UF string `xml:"UF"`
	} `xml:"enderEmit"`
}

// DestXML representa o destinatário. CPF cobre notas para pessoa física.
type DestXML struct {
	CNPJ      string `xml:"CNPJ"`
	CPF       string `xml:"CPF"`
	XNome     string `xml:"xNome"`
	EnderDest struct {
		UF string `xml:"UF"`
	} `xml:"enderDest"`
}

// TotalXML representa o nó <total>.
type TotalXML struct {
	ICMSTot struct {
		VNF  string `xml:"vNF"`
		VST  string `xml:"vST"`
		VIPI string `xml:"vIPI"`
	} `xml:"ICMSTot"`
}

// DetXML representa um item (<det>) da nota.
type DetXML struct {
	NItem string  `xml:"nItem,attr"`
	Prod  ProdXML `xml:"prod"`
	Imposto struct {
		ICMS   ICMSXML `xml:"ICMS"`
		PIS    PISXML  `xml:"PIS"`
		COFINS struct {
			COFINSAliq struct {
				CST     string `xml:"CST"`
				VCOFINS string `xml:"vCOFINS"`
			} `xml:"COFINSAliq"`
			COFINSOutr struct {
				CST     string `xml:"CST"`
				VCOFINS string `xml:"vCOFINS"`
			} `xml:"COFINSOutr"`
		} `xml:"COFINS"`
	} `xml:"imposto"`
}

// ProdXML representa o nó <prod> de um item.
type ProdXML struct {
	CProd  string `xml:"cProd"`
	XProd  string `xml:"xProd"`
	NCM    string `xml:"NCM"`
	CFOP   string `xml:"CFOP"`
	QCom   string `xml:"qCom"`
	VUnCom string `xml:"vUnCom"`
	VProd  string `xml:"vProd"`
}

// ICMSXML cobre os grupos de tributação usados na prática. O CST é lido do
// primeiro grupo preenchido.
type ICMSXML struct {
	ICMS00 struct {
		CST string `xml:"CST"`
	} `xml:"ICMS00"`
	ICMS10 struct {
		CST string `xml:"CST"`
	} `xml:"ICMS10"`
	ICMS20 struct {
		CST string `xml:"CST"`
	} `xml:"ICMS20"`
	ICMS40 struct {
		CST string `xml:"CST"`
	} `xml:"ICMS40"`
	ICMS60 struct {
		CST string `xml:"CST"`
	} `xml:"ICMS60"`
	ICMS70 struct {
		CST string `xml:"CST"`
	} `xml:"ICMS70"`
	ICMS90 struct {
		CST string `xml:"CST"`
	} `xml:"ICMS90"`
	ICMSSN101 struct {
		CSOSN string `xml:"CSOSN"`
	} `xml:"ICMSSN101"`
	ICMSSN102 struct {
		CSOSN string `xml:"CSOSN"`
	} `xml:"ICMSSN102"`
	ICMSSN500 struct {
		CSOSN string `xml:"CSOSN"`
	} `xml:"ICMSSN500"`
}

// CST devolve o primeiro código de situação tributária preenchido.
func (i ICMSXML) CST() string {
	switch {
	case i.ICMS00.CST != "":
		return i.ICMS00.CST
	case i.ICMS10.CST != "":
		return i.ICMS10.CST
	case i.ICMS20.CST != "":
		return i.ICMS20.CST
	case i.ICMS40.CST != "":
		return i.ICMS40.CST
	case i.ICMS60.CST != "":
		return i.ICMS60.CST
	case i.ICMS70.CST != "":
		return i.ICMS70.CST
	case i.ICMS90.CST != "":
		return i.ICMS90.CST
	case i.ICMSSN101.CSOSN != "":
		return i.ICMSSN101.CSOSN
	case i.ICMSSN102.CSOSN != "":
		return i.ICMSSN102.CSOSN
	case i.ICMSSN500.CSOSN != "":
		return i.ICMSSN500.CSOSN
	}
	return ""
}

// PISXML cobre os grupos PISAliq e PISOutr.
type PISXML struct {
	PISAliq struct {
		CST  string `xml:"CST"`
		VPIS string `xml:"vPIS"`
	} `xml:"PISAliq"`
	PISOutr struct {
		CST  string `xml:"CST"`
		VPIS string `xml:"vPIS"`
	} `xml:"PISOutr"`
}
