// internal/api/handlers/fiscal_handler.go
package handlers

import (
	"io"
	"net/http"

	"fiscal-service/internal/api/responses"
	"fiscal-service/internal/core/fiscal"
	"fiscal-service/internal/core/planilha"
	"fiscal-service/internal/domain"

	"github.com/gin-gonic/gin"
)

// FiscalHandler lida com as requisições de processamento de documentos.
type FiscalHandler struct {
	service  fiscal.Service
	planilha planilha.Service
	opcoes   fiscal.OpcoesLote
}

// NewFiscalHandler cria um novo handler com as opções padrão do pipeline.
func NewFiscalHandler(service fiscal.Service, planilhaSvc planilha.Service, opcoes fiscal.OpcoesLote) *FiscalHandler {
	return &FiscalHandler{
		service:  service,
		planilha: planilhaSvc,
		opcoes:   opcoes,
	}
}

// HandleProcessarLote recebe XMLs e pacotes zip via multipart e devolve o
// lote normalizado com resumos, lacunas e avisos.
func (h *FiscalHandler) HandleProcessarLote(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Formulário multipart inválido")
		return
	}

	headers := form.File["arquivos"]
	if len(headers) == 0 {
		responses.Error(c, http.StatusBadRequest, "Nenhum arquivo foi enviado")
		return
	}

	var arquivos []domain.ArquivoEntrada
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir um dos arquivos enviados")
			return
		}
		conteudo, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			responses.Error(c, http.StatusInternalServerError, "Não foi possível ler um dos arquivos enviados")
			return
		}
		arquivos = append(arquivos, domain.ArquivoEntrada{Nome: header.Filename, Conteudo: conteudo})
	}

	opcoes := h.opcoes
	if c.PostForm("forcarClassificacao") == "true" {
		opcoes.ForcarClassificacao = true
	}
	if c.PostForm("enriquecerSt") == "true" {
		opcoes.EnriquecerST = true
	}
	if c.PostForm("submeter") == "true" {
		opcoes.Submeter = true
	}

	resultado, err := h.service.ProcessarLote(c.Request.Context(), arquivos, opcoes)
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Erro ao processar o lote", err.Error())
		return
	}

	responses.Success(c, resultado, "Lote processado com sucesso")
}

// HandleImportarPlanilha recebe uma planilha (.xls, .xlsx) e devolve os
// documentos importados dela.
func (h *FiscalHandler) HandleImportarPlanilha(c *gin.Context) {
	header, err := c.FormFile("planilha")
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Planilha (.xls, .xlsx) não encontrada ou inválida")
		return
	}

	file, err := header.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir a planilha")
		return
	}
	defer file.Close()

	docs, err := h.planilha.ImportarPlanilha(file, header.Filename)
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Erro ao importar a planilha", err.Error())
		return
	}

	responses.Success(c, docs, "Planilha importada com sucesso")
}
