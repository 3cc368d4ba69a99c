// internal/core/planilha/service.go
package planilha

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"fiscal-service/internal/domain"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Service define a importação em lote por planilha, o caminho alternativo de
// ingestão para escritórios que não têm os XMLs.
type Service interface {
	ImportarPlanilha(arquivo io.Reader, nomeArquivo string) ([]domain.DocumentoFiscal, error)
}

type service struct{}

// NewService cria uma nova instância do serviço de importação.
func NewService() Service {
	return &service{}
}

func normalizarCabecalho(str string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	result, _, _ := transform.String(t, str)
	return strings.ToUpper(strings.TrimSpace(result))
}

// loadGenericExcel tenta xlsx e cai para xls legado.
func (svc *service) loadGenericExcel(file io.Reader) ([][]string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	reader := bytes.NewReader(data)

	f, err := excelize.OpenReader(reader)
	if err == nil {
		defer f.Close()
		sheetName := f.GetSheetList()[0]
		return f.GetRows(sheetName)
	}

	reader.Seek(0, io.SeekStart)
	workbook, err := xls.OpenReader(reader)
	if err == nil {
		if len(workbook.GetSheets()) == 0 {
			return nil, fmt.Errorf("o arquivo .xls não contém planilhas")
		}
		sheet, err := workbook.GetSheet(0)
		if err != nil {
			return nil, fmt.Errorf("erro ao obter planilha do arquivo .xls: %w", err)
		}
		var allRows [][]string
		for _, row := range sheet.GetRows() {
			var cells []string
			for _, cell := range row.GetCols() {
				cells = append(cells, cell.GetString())
			}
			allRows = append(allRows, cells)
		}
		return allRows, nil
	}

	return nil, fmt.Errorf("unsupported workbook file format")
}

// findHeaderRow procura a linha de cabeçalho nas primeiras 40 linhas.
func (svc *service) findHeaderRow(rows [][]string) int {
	maxRowsSearch := 40
	if len(rows) < maxRowsSearch {
		maxRowsSearch = len(rows)
	}
	for i := 0; i < maxRowsSearch; i++ {
		for _, cell := range rows[i] {
			norm := normalizarCabecalho(cell)
			if strings.Contains(norm, "CNPJ") || strings.Contains(norm, "EMITENTE") {
				return i
			}
		}
	}
	return 0
}

// pickBestColumn devolve o índice da primeira coluna cujo cabeçalho contém
// alguma das palavras-chave, na ordem das palavras-chave.
func (svc *service) pickBestColumn(header []string, keywords []string) int {
	normCols := make([]string, len(header))
	for i, h := range header {
		normCols[i] = normalizarCabecalho(h)
	}
	for _, kw := range keywords {
		nkw := normalizarCabecalho(kw)
		for idx, nc := range normCols {
			if strings.Contains(nc, nkw) {
				return idx
			}
		}
	}
	return -1
}

// parseValorPlanilha aceita os formatos brasileiro e anglo; inválido vira 0.
func parseValorPlanilha(val string) float64 {
	s := strings.TrimSpace(val)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, " ", "")
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	if lastComma > lastDot {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return 0
	}
	return f
}

func somenteDigitos(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizarCnpjPlanilha(valor string) string {
	d := somenteDigitos(valor)
	if d == "" {
		return ""
	}
	if len(d) > 14 {
		return d[len(d)-14:]
	}
	return strings.Repeat("0", 14-len(d)) + d
}

// ImportarPlanilha mapeia as colunas por palavra-chave e emite um documento
// por linha, com um item único. Linha sem CNPJ de emitente é pulada.
func (svc *service) ImportarPlanilha(arquivo io.Reader, nomeArquivo string) ([]domain.DocumentoFiscal, error) {
	rows, err := svc.loadGenericExcel(arquivo)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar planilha: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("planilha vazia")
	}

	headerRowIndex := svc.findHeaderRow(rows)
	header := rows[headerRowIndex]

	idxCnpj := svc.pickBestColumn(header, []string{"CNPJ EMITENTE", "CNPJ PRESTADOR", "CNPJ"})
	idxNome := svc.pickBestColumn(header, []string{"RAZAO", "EMITENTE", "PRESTADOR", "NOME"})
	idxTomador := svc.pickBestColumn(header, []string{"CNPJ TOMADOR", "TOMADOR"})
	idxNumero := svc.pickBestColumn(header, []string{"NUMERO", "NOTA", "DOCUMENTO"})
	idxSerie := svc.pickBestColumn(header, []string{"SERIE"})
	idxData := svc.pickBestColumn(header, []string{"EMISSAO", "DATA"})
	idxValor := svc.pickBestColumn(header, []string{"VALOR", "TOTAL"})
	idxNcm := svc.pickBestColumn(header, []string{"NCM", "SERVICO"})
	idxDescricao := svc.pickBestColumn(header, []string{"DESCRICAO", "DISCRIMINACAO"})

	if idxCnpj == -1 {
		return nil, fmt.Errorf("coluna de CNPJ não encontrada na planilha")
	}

	getValue := func(row []string, idx int) string {
		if idx != -1 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	agora := time.Now()
	var docs []domain.DocumentoFiscal
	for i := headerRowIndex + 1; i < len(rows); i++ {
		row := rows[i]
		cnpj := normalizarCnpjPlanilha(getValue(row, idxCnpj))
		if cnpj == "" {
			continue
		}

		valor := parseValorPlanilha(getValue(row, idxValor))
		numero := getValue(row, idxNumero)
		data := getValue(row, idxData)
		if t, err := time.Parse("02/01/2006", data); err == nil {
			data = t.Format("2006-01-02")
		}

		doc := domain.DocumentoFiscal{
			Familia:      domain.FamiliaNFSe,
			Arquivo:      nomeArquivo,
			CnpjEmitente: cnpj,
			NomeEmitente: getValue(row, idxNome),
			CnpjTomador:  normalizarCnpjPlanilha(getValue(row, idxTomador)),
			Numero:       numero,
			Serie:        getValue(row, idxSerie),
			DataEmissao:  data,
			ValorTotal:   valor,
			Itens: []domain.ItemDocumento{{
				NCM:           getValue(row, idxNcm),
				Descricao:     getValue(row, idxDescricao),
				Quantidade:    1,
				ValorUnitario: valor,
				ValorTotal:    valor,
			}},
		}
		if doc.CnpjTomador == "" {
			doc.CnpjTomador = domain.CnpjGenerico
			doc.NomeTomador = domain.NomeTomadorGenerico
		}

		// mesma síntese de chave das NFSe: 44 posições completadas com zero
		chave := cnpj + somenteDigitos(numero) + somenteDigitos(data) + somenteDigitos(agora.Format("20060102150405.000"))
		if len(chave) > 44 {
			chave = chave[:44]
		} else {
			chave = chave + strings.Repeat("0", 44-len(chave))
		}
		doc.ChaveAcesso = chave

		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("nenhuma linha válida na planilha")
	}
	return docs, nil
}
