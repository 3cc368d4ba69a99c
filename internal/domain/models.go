// internal/domain/models.go
package domain

import "time"

// FamiliaDocumento identifica a família de um documento fiscal.
type FamiliaDocumento string

// Famílias suportadas pelo pipeline.
const (
	FamiliaNFe  FamiliaDocumento = "NFE"  // nota fiscal eletrônica de mercadoria
	FamiliaNFCe FamiliaDocumento = "NFCE" // nota fiscal de consumidor (modelo 65)
	FamiliaNFSe FamiliaDocumento = "NFSE" // nota fiscal de serviço (layouts municipais)
)

// CnpjGenerico é o tomador reservado usado quando o XML não traz CNPJ/CPF.
const CnpjGenerico = "00000000000000"

// NomeTomadorGenerico acompanha o CnpjGenerico.
const NomeTomadorGenerico = "TOMADOR NAO IDENTIFICADO"

// ArquivoEntrada é um arquivo individual após a expansão de pacotes.
type ArquivoEntrada struct {
	Nome     string
	Conteudo []byte
}

// ItemDocumento é um item de produto ou serviço de um documento fiscal.
type ItemDocumento struct {
	NCM           string  `json:"ncm"`
	CFOP          string  `json:"cfop"`
	Descricao     string  `json:"descricao"`
	Quantidade    float64 `json:"quantidade"`
	ValorUnitario float64 `json:"valor_unitario"`
	ValorTotal    float64 `json:"valor_total"`
	ValorPIS      float64 `json:"valor_pis"`
	ValorCOFINS   float64 `json:"valor_cofins"`
	ValorCSLL     float64 `json:"valor_csll"`
	CSTICMS       string  `json:"cst_icms"`
	CSTPIS        string  `json:"cst_pis"`
	CSTCOFINS     string  `json:"cst_cofins"`

	ST *SubstituicaoTributaria `json:"st,omitempty"`
}

// DocumentoFiscal é a representação canônica produzida pelos extratores.
//
// Invariantes: ChaveAcesso tem exatamente 44 caracteres quando presente;
// CnpjEmitente e CnpjTomador têm exatamente 14 dígitos após normalização;
// quando Cancelada, todos os campos monetários são zero e os campos de
// identidade permanecem intactos.
type DocumentoFiscal struct {
	Familia           FamiliaDocumento `json:"familia"`
	Arquivo           string           `json:"arquivo"`
	CnpjEmitente      string           `json:"cnpj_emitente"`
	NomeEmitente      string           `json:"nome_emitente"`
	CnpjTomador       string           `json:"cnpj_tomador"`
	NomeTomador       string           `json:"nome_tomador"`
	Numero            string           `json:"numero"`
	Serie             string           `json:"serie"`
	DataEmissao       string           `json:"data_emissao"`
	UFOrigem          string           `json:"uf_origem"`
	UFDestino         string           `json:"uf_destino"`
	NaturezaOperacao  string           `json:"natureza_operacao"`
	Modelo            string           `json:"modelo"`
	Cancelada         bool             `json:"cancelada"`
	ISSRetido         bool             `json:"iss_retido"`
	ValorISSRetido    float64          `json:"valor_iss_retido"`
	ChaveAcesso       string           `json:"chave_acesso"`
	ValorTotal        float64          `json:"valor_total"`
	DataParaRevisao   bool             `json:"data_para_revisao,omitempty"`
	Itens             []ItemDocumento  `json:"itens"`
}

// OrigemST indica de onde veio o dado de substituição tributária.
type OrigemST string

const (
	OrigemCache       OrigemST = "cache"
	OrigemAPI         OrigemST = "api"
	OrigemNaoEncontrada OrigemST = "not_found"
)

// SubstituicaoTributaria é o enriquecimento interestadual anexado a um item.
type SubstituicaoTributaria struct {
	Origem                OrigemST `json:"origem"`
	MVA                   float64  `json:"mva,omitempty"`
	AliquotaInterestadual float64  `json:"aliquota_interestadual,omitempty"`
	CEST                  string   `json:"cest,omitempty"`
	Descricao             string   `json:"descricao,omitempty"`
}

// ResumoNCM agrega todos os itens de um lote que compartilham o mesmo NCM.
type ResumoNCM struct {
	NCM         string  `json:"ncm"`
	Quantidade  float64 `json:"quantidade"`
	ValorTotal  float64 `json:"valor_total"`
	TotalPIS    float64 `json:"total_pis"`
	TotalCOFINS float64 `json:"total_cofins"`
	TotalCSLL   float64 `json:"total_csll"`
	PercPIS     float64 `json:"perc_pis"`
	PercCOFINS  float64 `json:"perc_cofins"`
	PercCSLL    float64 `json:"perc_csll"`
}

// ResumoMensal agrega documentos por (ano, mês) da data de emissão.
type ResumoMensal struct {
	Ano         int     `json:"ano"`
	Mes         int     `json:"mes"`
	Quantidade  float64 `json:"quantidade"`
	ValorTotal  float64 `json:"valor_total"`
	TotalPIS    float64 `json:"total_pis"`
	TotalCOFINS float64 `json:"total_cofins"`
	TotalCSLL   float64 `json:"total_csll"`
	PercPIS     float64 `json:"perc_pis"`
	PercCOFINS  float64 `json:"perc_cofins"`
	PercCSLL    float64 `json:"perc_csll"`
}

// LacunaSequencia reporta números de nota pulados por (emitente, série).
type LacunaSequencia struct {
	CnpjEmitente   string `json:"cnpj_emitente"`
	Serie          string `json:"serie"`
	NumerosPulados []int  `json:"numeros_pulados"`
}

// MotivoDescarte categoriza documentos que não entraram no lote.
type MotivoDescarte string

const (
	MotivoNaoClassificado    MotivoDescarte = "nao_classificado"
	MotivoSemEmitente        MotivoDescarte = "sem_cnpj_emitente"
	MotivoTomadorNaoResolvido MotivoDescarte = "tomador_nao_resolvido"
	MotivoChaveDuplicada     MotivoDescarte = "chave_duplicada"
)

// Aviso é um problema não fatal associado a um arquivo do lote.
type Aviso struct {
	Arquivo string         `json:"arquivo"`
	Motivo  MotivoDescarte `json:"motivo"`
	Detalhe string         `json:"detalhe,omitempty"`
}

// ResultadoLote é o envelope de saída de uma invocação do pipeline.
type ResultadoLote struct {
	LoteID         string            `json:"lote_id"`
	Total          int               `json:"total"`
	Processados    int               `json:"processados"`
	Descartados    int               `json:"descartados"`
	Documentos     []DocumentoFiscal `json:"documentos"`
	ResumosNCM     []ResumoNCM       `json:"resumos_ncm"`
	ResumosMensais []ResumoMensal    `json:"resumos_mensais"`
	Lacunas        []LacunaSequencia `json:"lacunas"`
	Avisos         []Aviso           `json:"avisos,omitempty"`
	TempoExecucao  string            `json:"tempo_execucao"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Cliente é um registro de contraparte no ledger.
type Cliente struct {
	ID   int64
	Cnpj string
	Nome string
}

// ResultadoInsercao é o retorno do insert em lote no ledger.
type ResultadoInsercao struct {
	Inseridos  int
	Falhas     int
	Duplicadas []string // chaves de acesso rejeitadas por duplicidade
}
