package tools

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
)

// HTTPTool makes outbound GET/POST requests. Business logic beyond the
// contract (e.g. response-type-specific parsing) is out of scope; this
// is the thin, generic request/response shape that higher-level tools
// (web-search, weather, trello) would build on.
type HTTPTool struct {
	Client *http.Client
}

func NewHTTPTool() *HTTPTool {
	return &HTTPTool{Client: &http.Client{Timeout: 30 * time.Second}}
}

func (t *HTTPTool) Name() string { return "http" }
func (t *HTTPTool) Init() error  { return nil }

func (t *HTTPTool) Run(ctx context.Context, args map[string]any) toolregistry.Result {
	url, _ := args["url"].(string)
	if url == "" {
		return toolregistry.Failf("http: missing required argument 'url'")
	}
	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if b, ok := args["body"].(string); ok {
		body = strings.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return toolregistry.Fail(err)
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return toolregistry.Fail(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return toolregistry.Fail(err)
	}

	out := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(data),
	}
	if resp.StatusCode >= 400 {
		return toolregistry.Result{Success: false, Output: out, Error: resp.Status}
	}
	return toolregistry.OK(out)
}

func (t *HTTPTool) Context() string {
	return "run(url: string, method?: string, headers?: object, body?: string) -> {status_code, body}. " +
		"Performs a generic outbound HTTP request; responses over 1MB are truncated."
}
