// internal/core/fiscal/xmlnode.go
package fiscal

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// noXML é uma árvore genérica de elementos. Os layouts municipais de NFSe
// variam demais para structs tipadas; as estratégias de extração procuram
// campos por listas de nomes candidatos sobre esta árvore.
type noXML struct {
	Nome   string
	Attrs  map[string]string
	Filhos []*noXML
	texto  strings.Builder
}

// leitorCharset decodifica XMLs declarados em ISO-8859-1/Windows-1252, comuns
// em prefeituras, usando os mesmos decoders do x/text aplicados aos CSVs.
func leitorCharset(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("charset não suportado: %s", charset)
}

// parseNoXML monta a árvore genérica a partir dos bytes do documento.
func parseNoXML(dados []byte) (*noXML, error) {
	dec := xml.NewDecoder(bytes.NewReader(dados))
	dec.CharsetReader = leitorCharset
	dec.Strict = false

	var raiz *noXML
	var pilha []*noXML

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("erro ao ler XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			no := &noXML{Nome: t.Name.Local}
			if len(t.Attr) > 0 {
				no.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					no.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(pilha) == 0 {
				if raiz == nil {
					raiz = no
				}
			} else {
				pai := pilha[len(pilha)-1]
				pai.Filhos = append(pai.Filhos, no)
			}
			pilha = append(pilha, no)
		case xml.EndElement:
			if len(pilha) > 0 {
				pilha = pilha[:len(pilha)-1]
			}
		case xml.CharData:
			if len(pilha) > 0 {
				pilha[len(pilha)-1].texto.Write(t)
			}
		}
	}

	if raiz == nil {
		return nil, fmt.Errorf("conteúdo XML vazio")
	}
	return raiz, nil
}

// Texto devolve o conteúdo textual direto do elemento, sem espaços nas pontas.
func (n *noXML) Texto() string {
	return strings.TrimSpace(n.texto.String())
}

// Attr devolve o valor de um atributo pelo nome local (case-insensitive).
func (n *noXML) Attr(nome string) string {
	for k, v := range n.Attrs {
		if strings.EqualFold(k, nome) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Busca faz busca em profundidade pelo primeiro elemento cujo nome local
// iguala um dos candidatos, na ordem dos candidatos.
func (n *noXML) Busca(nomes ...string) *noXML {
	for _, nome := range nomes {
		if no := n.buscaUm(nome); no != nil {
			return no
		}
	}
	return nil
}

func (n *noXML) buscaUm(nome string) *noXML {
	if strings.EqualFold(n.Nome, nome) {
		return n
	}
	for _, f := range n.Filhos {
		if no := f.buscaUm(nome); no != nil {
			return no
		}
	}
	return nil
}

// BuscaTodos coleta, em profundidade, todos os elementos com o nome dado.
// Não desce para dentro de um elemento já coletado.
func (n *noXML) BuscaTodos(nome string) []*noXML {
	if strings.EqualFold(n.Nome, nome) {
		return []*noXML{n}
	}
	var achados []*noXML
	for _, f := range n.Filhos {
		achados = append(achados, f.BuscaTodos(nome)...)
	}
	return achados
}

// TextoDe devolve o primeiro texto não vazio entre os elementos candidatos.
func (n *noXML) TextoDe(nomes ...string) string {
	for _, nome := range nomes {
		if no := n.buscaUm(nome); no != nil {
			if t := no.Texto(); t != "" {
				return t
			}
		}
	}
	return ""
}

// Tem informa se algum dos elementos candidatos existe na subárvore.
func (n *noXML) Tem(nomes ...string) bool {
	return n.Busca(nomes...) != nil
}

// Filho devolve o filho direto com o nome dado.
func (n *noXML) Filho(nome string) *noXML {
	for _, f := range n.Filhos {
		if strings.EqualFold(f.Nome, nome) {
			return f
		}
	}
	return nil
}
