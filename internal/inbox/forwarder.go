package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/langchou/stationos/internal/models"
)

// Forwarder 把收到的负载原样转发给下游工作流（例如 n8n webhook），不重试
type Forwarder struct {
	httpClient *http.Client
	url        string
}

// NewForwarder 创建转发器，url 为空时不转发
func NewForwarder(url string, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Forwarder{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// Forward 转发负载，返回结果状态、下游 JSON 响应和错误说明
func (f *Forwarder) Forward(ctx context.Context, payload []byte) (models.ForwardStatus, json.RawMessage, error) {
	if f == nil || f.url == "" {
		return models.ForwardSkipped, nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, "POST", f.url, bytes.NewReader(payload))
	if err != nil {
		return models.ForwardFailed, nil, fmt.Errorf("create forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return models.ForwardFailed, nil, fmt.Errorf("forward request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.ForwardRejected, nil, fmt.Errorf("forward failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	if json.Valid(body) {
		return models.ForwardSent, json.RawMessage(body), nil
	}
	return models.ForwardSent, nil, nil
}
