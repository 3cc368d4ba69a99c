// internal/core/fiscal/expander.go
package fiscal

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"fiscal-service/internal/domain"
)

// profundidadeMaxima limita zips aninhados; a lista de trabalho evita
// recursão, o limite evita bombas de compressão.
const profundidadeMaxima = 3

type itemExpansao struct {
	arquivo      domain.ArquivoEntrada
	profundidade int
}

// expandirArquivos transforma a carga recebida (XMLs soltos e pacotes zip,
// inclusive zip dentro de zip e subpastas) numa lista plana de XMLs.
// Arquivos que não são XML nem zip são ignorados.
func expandirArquivos(arquivos []domain.ArquivoEntrada) ([]domain.ArquivoEntrada, error) {
	fila := make([]itemExpansao, 0, len(arquivos))
	for _, a := range arquivos {
		fila = append(fila, itemExpansao{arquivo: a})
	}

	var saida []domain.ArquivoEntrada
	for len(fila) > 0 {
		item := fila[0]
		fila = fila[1:]

		nome := item.arquivo.Nome
		switch {
		case ehZip(nome, item.arquivo.Conteudo):
			if item.profundidade >= profundidadeMaxima {
				continue
			}
			entradas, err := lerZip(item.arquivo.Conteudo)
			if err != nil {
				return nil, fmt.Errorf("erro ao abrir pacote %s: %w", nome, err)
			}
			for _, e := range entradas {
				fila = append(fila, itemExpansao{arquivo: e, profundidade: item.profundidade + 1})
			}
		case strings.EqualFold(filepath.Ext(nome), ".xml"):
			saida = append(saida, item.arquivo)
		}
	}
	return saida, nil
}

// ehZip aceita pela extensão ou pela assinatura PK no conteúdo.
func ehZip(nome string, conteudo []byte) bool {
	if strings.EqualFold(filepath.Ext(nome), ".zip") {
		return true
	}
	return len(conteudo) >= 4 && bytes.HasPrefix(conteudo, []byte("PK\x03\x04"))
}

func lerZip(conteudo []byte) ([]domain.ArquivoEntrada, error) {
	leitor, err := zip.NewReader(bytes.NewReader(conteudo), int64(len(conteudo)))
	if err != nil {
		return nil, err
	}

	var entradas []domain.ArquivoEntrada
	for _, f := range leitor.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		dados, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		entradas = append(entradas, domain.ArquivoEntrada{
			Nome:     filepath.Base(f.Name),
			Conteudo: dados,
		})
	}
	return entradas, nil
}
