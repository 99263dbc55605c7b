package scanning

import (
	"context"
	"time"
)

// mockModel is a mock implementation of Model
type mockModel struct {
	resp    *ModelResponse
	err     error
	calls   int
	lastReq ModelRequest
}

func (m *mockModel) Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockModel) Close() error {
	return nil
}

func completed(text string) *ModelResponse {
	return &ModelResponse{Status: StatusCompleted, Text: text}
}

// mockIdentifier returns errs in order, then result
type mockIdentifier struct {
	errs   []error
	result *IdentificationResult
	calls  int
}

func (m *mockIdentifier) Identify(ctx context.Context, req ScanRequest) (*IdentificationResult, error) {
	m.calls++
	if m.calls <= len(m.errs) {
		return nil, m.errs[m.calls-1]
	}
	return m.result, nil
}

// recordingTimer fires immediately and remembers every requested delay
type recordingTimer struct {
	delays []time.Duration
	ch     chan time.Time
}

func (t *recordingTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.ch = make(chan time.Time, 1)
	t.ch <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time {
	return t.ch
}
