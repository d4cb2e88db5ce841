package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	apiEnv    = "TIP_API_URL"
	tokenEnv  = "TIP_TOKEN"
	callerEnv = "TIP_CALLER"

	callerHeader      = "X-Tip-Caller"
	idempotencyHeader = "Idempotency-Key"
)

var (
	apiEndpoint = defaultAPIEndpoint()
	authToken   = os.Getenv(tokenEnv)
	callerAddr  = os.Getenv(callerEnv)
	httpClient  = &http.Client{Timeout: 30 * time.Second}
)

func defaultAPIEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(apiEnv)); v != "" {
		return strings.TrimSuffix(v, "/")
	}
	return "http://127.0.0.1:8080"
}

// apiError is the error body returned by tipd.
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// callAPI sends body as JSON and returns the raw response body. POSTs carry a
// fresh idempotency key unless one is supplied.
func callAPI(method, path string, body interface{}, idemKey string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, apiEndpoint+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(authToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if caller := strings.TrimSpace(callerAddr); caller != "" {
		req.Header.Set(callerHeader, caller)
	}
	if method == http.MethodPost {
		if idemKey == "" {
			idemKey = uuid.NewString()
		}
		req.Header.Set(idempotencyHeader, idemKey)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, apiEndpoint+path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}
	return data, nil
}

func writeResult(w io.Writer, raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Fprintln(w, strings.TrimSpace(string(raw)))
		return
	}
	fmt.Fprintln(w, buf.String())
}

func handleCallError(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
