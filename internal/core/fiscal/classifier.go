// internal/core/fiscal/classifier.go
package fiscal

import "fiscal-service/internal/domain"

// Marcadores de serviço em ordem de prevalência: layout ABRASF, respostas de
// consulta/lote das prefeituras, padrão nacional e variantes municipais.
var marcadoresNfse = []string{
	"CompNfse",
	"ConsultarNfseResposta",
	"ConsultarNfseRpsResposta",
	"ConsultarLoteRpsResposta",
	"GerarNfseResposta",
	"EnviarLoteRpsSincronoResposta",
	"ConsultarNfseServicoPrestadoResposta",
	"InfNfse",
	"Nfse",
	"infNFSe",
	"ListaNfse",
	"CompTcNfse",
	"InfDeclaracaoPrestacaoServico",
	"nfdProc",
}

// classificarDocumento decide a família pela presença de marcadores na árvore,
// nesta ordem: mercadoria, consumidor, serviço. Sem marcador nenhum devolve
// ok=false; o fallback para NFe fica a cargo do chamador (modo forçado).
func classificarDocumento(raiz *noXML) (domain.FamiliaDocumento, bool) {
	if inf := raiz.Busca("infNFe"); inf != nil {
		if ide := inf.Busca("ide"); ide != nil && ide.TextoDe("mod") == "65" {
			return domain.FamiliaNFCe, true
		}
		return domain.FamiliaNFe, true
	}
	if raiz.Tem("infNFCe") {
		return domain.FamiliaNFCe, true
	}
	if raiz.Tem(marcadoresNfse...) {
		return domain.FamiliaNFSe, true
	}
	return "", false
}
