package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SolverClient talks to a FlareSolverr-compatible sidecar that executes
// common bot-mitigation JS challenges and returns the solved page.
type SolverClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewSolverClient wires the sidecar endpoint. The timeout covers the
// whole solve round-trip and is forwarded to the service as maxTimeout.
func NewSolverClient(baseURL string, timeout time.Duration) *SolverClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SolverClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type solverRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout"`
}

type solverResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		URL      string `json:"url"`
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

// Get asks the sidecar to solve and fetch one page, returning the final
// status code and rendered body.
func (s *SolverClient) Get(ctx context.Context, pageURL string) (int, []byte, error) {
	payload, err := json.Marshal(solverRequest{
		Cmd:        "request.get",
		URL:        pageURL,
		MaxTimeout: int(s.timeout / time.Millisecond),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("marshal solver request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("new solver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call solver: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read solver response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, nil, fmt.Errorf("solver returned %s", resp.Status)
	}

	var solved solverResponse
	if err := json.Unmarshal(body, &solved); err != nil {
		return 0, nil, fmt.Errorf("parse solver response: %w", err)
	}
	if solved.Status != "ok" {
		return 0, nil, fmt.Errorf("solver error: %s", solved.Message)
	}

	return solved.Solution.Status, []byte(solved.Solution.Response), nil
}
