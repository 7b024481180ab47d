// Package client talks to the remote script generation service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/models"
)

// GenerateScriptPath is the fixed endpoint on the generation service.
const GenerateScriptPath = "/generate-script"

const (
	maxResponseBytes = 4 << 20
	maxDetailBytes   = 512
)

// ScriptGenerator produces a script for a completed form.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error)
}

// ScriptClient is the HTTP implementation of ScriptGenerator. It sends one
// request per call: no retries, no auth, no request id.
type ScriptClient struct {
	baseURL string
	client  *http.Client
}

// NewScriptClient creates a client for the service at baseURL. A nil
// httpClient means http.DefaultClient, which has no timeout.
func NewScriptClient(baseURL string, httpClient *http.Client) *ScriptClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ScriptClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// Endpoint returns the full URL requests are posted to.
func (c *ScriptClient) Endpoint() string {
	return c.baseURL + GenerateScriptPath
}

// GenerateScript posts input and decodes the returned script. Errors are
// AppErrors of type request_rejected, transport_failure or
// malformed_response.
func (c *ScriptClient) GenerateScript(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error) {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return nil, apperrors.NewProcessingError("encode form", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(jsonData))
	if err != nil {
		return nil, apperrors.NewTransportError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransportError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxDetailBytes))
		return nil, apperrors.NewRequestRejectedError(
			fmt.Errorf("status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(detail))),
		)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, apperrors.NewTransportError(err)
	}
	if len(body) > maxResponseBytes {
		return nil, apperrors.NewMalformedResponseError("response too large", nil)
	}

	script, err := models.DecodeScript(body)
	if err != nil {
		return nil, apperrors.NewMalformedResponseError(err.Error(), nil)
	}
	return script, nil
}
