// internal/core/tributacao/client.go
package tributacao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Consulta é o pedido enviado ao serviço remoto de substituição tributária.
type Consulta struct {
	NCM               string `json:"ncm,omitempty"`
	Descricao         string `json:"descricao,omitempty"`
	CEST              string `json:"cest,omitempty"`
	UFOrigem          string `json:"uf_origem"`
	UFDestino         string `json:"uf_destino"`
	FinalidadeDestino string `json:"finalidade_destino,omitempty"`
	RegimeOrigem      string `json:"regime_origem,omitempty"`
	RegimeDestino     string `json:"regime_destino,omitempty"`
}

// Registro é uma linha da resposta remota.
type Registro struct {
	MVA                   float64 `json:"mva"`
	AliquotaInterestadual float64 `json:"aliquota_interestadual"`
	CEST                  string  `json:"cest"`
	Descricao             string  `json:"descricao"`
}

// Resposta é o envelope devolvido pelo serviço remoto.
type Resposta struct {
	TotalRegistros int        `json:"total_registros"`
	Registros      []Registro `json:"registros"`
}

// Consultor abstrai o serviço remoto para permitir fakes nos testes.
type Consultor interface {
	ConsultarST(ctx context.Context, consulta Consulta) (*Resposta, error)
}

type consultorHTTP struct {
	url    string
	client *http.Client
}

// NewConsultorHTTP cria o consultor real apontando para a URL configurada.
// O timeout é do http.Client; o pipeline em si não impõe nenhum.
func NewConsultorHTTP(url string, timeout time.Duration) Consultor {
	return &consultorHTTP{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *consultorHTTP) ConsultarST(ctx context.Context, consulta Consulta) (*Resposta, error) {
	corpo, err := json.Marshal(consulta)
	if err != nil {
		return nil, fmt.Errorf("erro ao montar consulta ST: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(corpo))
	if err != nil {
		return nil, fmt.Errorf("erro ao montar requisição ST: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erro ao consultar serviço de ST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serviço de ST devolveu status %d", resp.StatusCode)
	}

	var resposta Resposta
	if err := json.NewDecoder(resp.Body).Decode(&resposta); err != nil {
		return nil, fmt.Errorf("erro ao decodificar resposta de ST: %w", err)
	}
	return &resposta, nil
}
