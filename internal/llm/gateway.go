package llm

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// GatewayGenerator talks to a generation proxy exposing
// POST /generate {prompt, image?, mimeType?} -> {text}
type GatewayGenerator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type gatewayRequest struct {
	Prompt   string `json:"prompt"`
	Image    string `json:"image,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type gatewayResponse struct {
	Text string `json:"text"`
}

// NewGatewayGenerator creates a gateway backend
func NewGatewayGenerator(config Config) (*GatewayGenerator, error) {
	if config.BaseURL == "" {
		return nil, eris.New("gateway base URL is required")
	}
	return &GatewayGenerator{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: newHTTPClient(config),
	}, nil
}

func (g *GatewayGenerator) Name() string {
	return "gateway"
}

// Generate sends the prompt; the system instruction is prepended to it
func (g *GatewayGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}
	apiReq := gatewayRequest{Prompt: prompt}
	if len(req.Image) > 0 {
		apiReq.Image = base64.StdEncoding.EncodeToString(req.Image)
		apiReq.MimeType = req.MimeType
	}

	var header http.Header
	if g.apiKey != "" {
		header = http.Header{"Authorization": []string{"Bearer " + g.apiKey}}
	}

	var resp gatewayResponse
	if err := postJSON(ctx, g.httpClient, g.Name(), g.baseURL+"/generate", header, apiReq, &resp); err != nil {
		return nil, err
	}
	return &Response{Text: resp.Text}, nil
}
