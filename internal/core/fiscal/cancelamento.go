// internal/core/fiscal/cancelamento.go
package fiscal

import "fiscal-service/internal/domain"

// Quatro indicadores independentes de cancelamento; qualquer um basta:
// sub-elemento dedicado, marcador de substituição, campo de código de
// cancelamento preenchido e pedido de cancelamento.
var (
	marcadoresCancelamento = []string{"NfseCancelamento", "CancelamentoNfse", "procCancNFe"}
	marcadoresSubstituicao = []string{"NfseSubstituicao", "SubstituicaoNfse"}
	camposCodigoCancelamento = []string{"CodigoCancelamento", "CodCancelamento"}
	marcadoresPedidoCancelamento = []string{"PedidoCancelamento", "InfPedidoCancelamento", "retCancNFe"}
)

// documentoCancelado verifica os quatro indicadores sobre a árvore do XML.
func documentoCancelado(raiz *noXML) bool {
	if raiz.Tem(marcadoresCancelamento...) {
		return true
	}
	if raiz.Tem(marcadoresSubstituicao...) {
		return true
	}
	for _, campo := range camposCodigoCancelamento {
		if no := raiz.Busca(campo); no != nil {
			if t := no.Texto(); t != "" && t != "0" {
				return true
			}
		}
	}
	return raiz.Tem(marcadoresPedidoCancelamento...)
}

// zerarValores aplica o efeito do cancelamento: campos monetários a zero,
// campos de identidade intactos para os relatórios de sequência e resumo.
func zerarValores(doc *domain.DocumentoFiscal) {
	doc.Cancelada = true
	doc.ValorTotal = 0
	doc.ValorISSRetido = 0
	for i := range doc.Itens {
		doc.Itens[i].ValorUnitario = 0
		doc.Itens[i].ValorTotal = 0
		doc.Itens[i].ValorPIS = 0
		doc.Itens[i].ValorCOFINS = 0
		doc.Itens[i].ValorCSLL = 0
	}
}
