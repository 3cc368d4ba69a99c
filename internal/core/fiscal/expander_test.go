package fiscal

import (
	"archive/zip"
	"bytes"
	"testing"

	"fiscal-service/internal/domain"
)

func montarZip(t *testing.T, entradas map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for nome, conteudo := range entradas {
		f, err := w.Create(nome)
		if err != nil {
			t.Fatalf("erro ao criar entrada %s: %v", nome, err)
		}
		if _, err := f.Write(conteudo); err != nil {
			t.Fatalf("erro ao escrever entrada %s: %v", nome, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("erro ao fechar zip: %v", err)
	}
	return buf.Bytes()
}

func TestExpandirArquivosZipAninhado(t *testing.T) {
	interno := montarZip(t, map[string][]byte{
		"c.xml": []byte("<nota>c</nota>"),
	})
	externo := montarZip(t, map[string][]byte{
		"a.xml":          []byte("<nota>a</nota>"),
		"subpasta/b.xml": []byte("<nota>b</nota>"),
		"interno.zip":    interno,
		"leiame.txt":     []byte("ignorar"),
	})

	xmls, err := expandirArquivos([]domain.ArquivoEntrada{
		{Nome: "lote.zip", Conteudo: externo},
		{Nome: "d.xml", Conteudo: []byte("<nota>d</nota>")},
	})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}

	if len(xmls) != 4 {
		t.Fatalf("esperados 4 XMLs após a expansão, vieram %d", len(xmls))
	}
	nomes := make(map[string]bool)
	for _, x := range xmls {
		nomes[x.Nome] = true
	}
	for _, esperado := range []string{"a.xml", "b.xml", "c.xml", "d.xml"} {
		if !nomes[esperado] {
			t.Errorf("arquivo %s não apareceu na expansão", esperado)
		}
	}
}

func TestExpandirArquivosZipSemExtensao(t *testing.T) {
	pacote := montarZip(t, map[string][]byte{"a.xml": []byte("<nota/>")})
	xmls, err := expandirArquivos([]domain.ArquivoEntrada{
		{Nome: "upload.bin", Conteudo: pacote},
	})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if len(xmls) != 1 || xmls[0].Nome != "a.xml" {
		t.Errorf("assinatura PK deveria bastar para expandir, veio %v", xmls)
	}
}

func TestExpandirArquivosLimitaProfundidade(t *testing.T) {
	// quatro níveis de zip: o XML do nível mais fundo fica fora do limite
	nivel := montarZip(t, map[string][]byte{"fundo.xml": []byte("<nota/>")})
	for i := 0; i < 3; i++ {
		nivel = montarZip(t, map[string][]byte{"nivel.zip": nivel})
	}

	xmls, err := expandirArquivos([]domain.ArquivoEntrada{
		{Nome: "raso.zip", Conteudo: nivel},
	})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if len(xmls) != 0 {
		t.Errorf("zip além da profundidade máxima deveria ser ignorado, vieram %d XMLs", len(xmls))
	}
}

func TestExpandirArquivosZipCorrompido(t *testing.T) {
	_, err := expandirArquivos([]domain.ArquivoEntrada{
		{Nome: "quebrado.zip", Conteudo: []byte("PK\x03\x04conteudo invalido")},
	})
	if err == nil {
		t.Error("zip corrompido deveria produzir erro")
	}
}
