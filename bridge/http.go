package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// InvokePath is where NewHTTPHandler is mounted and where HTTPHostFunc posts.
const InvokePath = "/invoke"

// HTTPOption configures HTTPHostFunc.
type HTTPOption func(*httpTransport)

// WithHTTPClient sets a custom HTTP client. The default client has no
// timeout; cancel through the context instead.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *httpTransport) {
		t.httpClient = client
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(t *httpTransport) {
		t.headers[key] = value
	}
}

type httpTransport struct {
	url        string
	httpClient *http.Client
	headers    map[string]string
}

// HTTPHostFunc returns a HostFunc that POSTs envelopes to baseURL + InvokePath.
func HTTPHostFunc(baseURL string, options ...HTTPOption) HostFunc {
	t := &httpTransport{
		url:        strings.TrimSuffix(baseURL, "/") + InvokePath,
		httpClient: &http.Client{},
		headers:    make(map[string]string),
	}
	for _, option := range options {
		option(t)
	}
	return t.call
}

func (t *httpTransport) call(ctx context.Context, requestPayload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(requestPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("host returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// NewHTTPHandler serves envelopes for h. Command failures are reported inside
// a 200 response; non-200 statuses mean the envelope never reached h.
func NewHTTPHandler(h Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid method", http.StatusMethodNotAllowed)
			return
		}

		buf, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Warn("Failed to read bridge request", "remote", r.RemoteAddr, "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := Serve(r.Context(), h, buf)
		if err != nil {
			logger.Error("Failed to encode bridge response", "remote", r.RemoteAddr, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(resp)
	})
}
