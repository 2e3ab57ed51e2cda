package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ToolInvokeResponse is the outcome of a direct provider call.
type ToolInvokeResponse struct {
	ToolName  string          `json:"tool_name"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// ListTools returns the registered provider tool names.
func (s *Service) ListTools() []string {
	return s.tools.Names()
}

// InvokeTool runs one provider outside any pipeline. Provider failures are
// reported in the response; only an unknown tool is an error.
func (s *Service) InvokeTool(ctx context.Context, toolName string, args json.RawMessage) (*ToolInvokeResponse, error) {
	if !s.hasTool(toolName) {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	timeout := s.config.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := s.tools.Execute(callCtx, toolName, args)
	s.metrics.ObserveProvider(toolName, err)

	resp := &ToolInvokeResponse{
		ToolName:  toolName,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		s.obs.Log().Warn().Str("tool", toolName).Err(err).Msg("tool invocation failed")
		resp.Status = "FAILED"
		resp.Error = err.Error()
		return resp, nil
	}
	resp.Status = "SUCCEEDED"
	resp.Result = result
	return resp, nil
}

func (s *Service) hasTool(name string) bool {
	for _, n := range s.tools.Names() {
		if n == name {
			return true
		}
	}
	return false
}
