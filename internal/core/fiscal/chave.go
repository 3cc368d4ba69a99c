// internal/core/fiscal/chave.go
package fiscal

import (
	"strings"
	"time"
)

// tamanhoChave é o comprimento da chave de acesso nacional.
const tamanhoChave = 44

// extrairChaveNfe lê a chave de acesso do atributo Id (prefixo "NFe") ou do
// chNFe do protocolo. Nota sem chave segue no pipeline com chave vazia.
func extrairChaveNfe(raiz *noXML) string {
	if inf := raiz.Busca("infNFe"); inf != nil {
		if id := inf.Attr("Id"); id != "" {
			chave := somenteDigitos(strings.TrimPrefix(id, "NFe"))
			if len(chave) == tamanhoChave {
				return chave
			}
		}
	}
	if ch := raiz.TextoDe("chNFe"); ch != "" {
		chave := somenteDigitos(ch)
		if len(chave) == tamanhoChave {
			return chave
		}
	}
	return ""
}

// sintetizarChaveNfse monta uma chave de 44 caracteres para notas de serviço,
// que não têm chave nacional: CNPJ do prestador + dígitos do número + dígitos
// da data de emissão + timestamp de geração, cortado ou completado com '0'.
//
// O timestamp torna a chave não idempotente entre reprocessamentos do mesmo
// arquivo; a deduplicação real de NFSe é o par (emitente, número) no ledger.
func sintetizarChaveNfse(cnpjEmitente, numero, dataEmissao string, agora time.Time) string {
	var b strings.Builder
	b.Grow(tamanhoChave)
	b.WriteString(somenteDigitos(cnpjEmitente))
	b.WriteString(somenteDigitos(numero))
	b.WriteString(somenteDigitos(dataEmissao))
	b.WriteString(somenteDigitos(agora.Format("20060102150405.000")))

	chave := b.String()
	if len(chave) > tamanhoChave {
		return chave[:tamanhoChave]
	}
	return chave + strings.Repeat("0", tamanhoChave-len(chave))
}
