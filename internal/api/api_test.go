package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ostlive/bookingpipe/internal/commerce"
	"github.com/ostlive/bookingpipe/internal/flow"
	"github.com/ostlive/bookingpipe/internal/models"
)

// mockEngine is a scriptable BookingService.
type mockEngine struct {
	turnResult       *models.TurnResult
	turnErr          error
	completionResult *models.CompletionResult
	completionErr    error
	report           *flow.ProgressReport
	reportErr        error
	restartErr       error

	lastTurn    models.TurnRequest
	lastWebhook models.TokenWebhookRequest
	restarted   []models.CorrelationKey
}

func (m *mockEngine) HandleTurn(ctx context.Context, req models.TurnRequest) (*models.TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.lastTurn = req
	return m.turnResult, m.turnErr
}

func (m *mockEngine) CompleteWithToken(ctx context.Context, req models.TokenWebhookRequest) (*models.CompletionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.lastWebhook = req
	return m.completionResult, m.completionErr
}

func (m *mockEngine) Restart(ctx context.Context, key models.CorrelationKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	m.restarted = append(m.restarted, key)
	return m.restartErr
}

func (m *mockEngine) ProgressReport(ctx context.Context, key models.CorrelationKey) (*flow.ProgressReport, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return m.report, m.reportErr
}

func newTestServer(t *testing.T, engine *mockEngine) *httptest.Server {
	t.Helper()
	srv, err := NewServer(WithEngine(engine))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeResponse(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var body models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestNewServerRequiresEngine(t *testing.T) {
	if _, err := NewServer(); err == nil {
		t.Error("expected error without an engine")
	}
}

func TestTurnHandler(t *testing.T) {
	engine := &mockEngine{
		turnResult: &models.TurnResult{
			Messages: []string{"Here are our available locations:"},
			Prompt:   &models.PromptSpec{Action: "select_location", Description: "Please select a location:", FreeText: true},
		},
	}
	ts := newTestServer(t, engine)

	resp, err := http.Post(ts.URL+"/turn", "application/json",
		strings.NewReader(`{"user_id":"u1","conversation_id":"c1","input":"hi"}`))
	if err != nil {
		t.Fatalf("POST /turn error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body.Status != string(models.APIStatusOK) {
		t.Errorf("body status = %q, want ok", body.Status)
	}
	if engine.lastTurn.Input != "hi" {
		t.Errorf("engine received input %q, want hi", engine.lastTurn.Input)
	}
}

func TestTurnHandlerValidation(t *testing.T) {
	ts := newTestServer(t, &mockEngine{})

	resp, err := http.Post(ts.URL+"/turn", "application/json",
		strings.NewReader(`{"conversation_id":"c1"}`))
	if err != nil {
		t.Fatalf("POST /turn error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body.Status != string(models.APIStatusError) {
		t.Errorf("body status = %q, want error", body.Status)
	}
}

func TestTurnHandlerRejectsInvalidJSON(t *testing.T) {
	ts := newTestServer(t, &mockEngine{})

	resp, err := http.Post(ts.URL+"/turn", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST /turn error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTurnHandlerMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &mockEngine{})

	resp, err := http.Get(ts.URL + "/turn")
	if err != nil {
		t.Fatalf("GET /turn error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow = %q, want POST", allow)
	}
}

func TestReceiveTokenHandlerOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		result     *models.CompletionResult
		wantStatus int
	}{
		{
			"checkout complete",
			&models.CompletionResult{Status: models.CompletionCheckoutComplete, Messages: []string{"[RECEIPT] Membership Purchased"}},
			http.StatusOK,
		},
		{
			"token stored",
			&models.CompletionResult{Status: models.CompletionTokenStored, PipelineError: "checkout failed"},
			http.StatusAccepted,
		},
		{
			"rejected",
			&models.CompletionResult{Status: models.CompletionRejected, PipelineError: "booking is not ready for payment"},
			http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{completionResult: tt.result}
			ts := newTestServer(t, engine)

			resp, err := http.Post(ts.URL+"/receive-token", "application/json",
				strings.NewReader(`{"token":"tok_1","user_id":"u1","conversation_id":"c1"}`))
			if err != nil {
				t.Fatalf("POST /receive-token error = %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			decodeResponse(t, resp)
			if engine.lastWebhook.Token != "tok_1" {
				t.Errorf("engine received token %q, want tok_1", engine.lastWebhook.Token)
			}
		})
	}
}

func TestReceiveTokenHandlerValidation(t *testing.T) {
	ts := newTestServer(t, &mockEngine{})

	resp, err := http.Post(ts.URL+"/receive-token", "application/json",
		strings.NewReader(`{"user_id":"u1","conversation_id":"c1"}`))
	if err != nil {
		t.Fatalf("POST /receive-token error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRestartHandler(t *testing.T) {
	engine := &mockEngine{}
	ts := newTestServer(t, engine)

	resp, err := http.Post(ts.URL+"/restart", "application/json",
		strings.NewReader(`{"user_id":"u1","conversation_id":"c1"}`))
	if err != nil {
		t.Fatalf("POST /restart error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	decodeResponse(t, resp)
	if len(engine.restarted) != 1 || engine.restarted[0].UserID != "u1" {
		t.Errorf("restarted = %v, want one entry for u1", engine.restarted)
	}
}

func TestProgressHandler(t *testing.T) {
	progress := models.NewBookingProgress()
	progress.RecordStep(models.StepGetLocations)
	progress.Data.CartID = "cart-1"
	engine := &mockEngine{report: &flow.ProgressReport{
		Progress: progress,
		Cart:     &commerce.CartSummaryInfo{CartID: "cart-1", Total: 5000},
	}}
	ts := newTestServer(t, engine)

	resp, err := http.Get(ts.URL + "/progress?user_id=u1&conversation_id=c1")
	if err != nil {
		t.Fatalf("GET /progress error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body.Result == nil {
		t.Fatal("expected progress report in result")
	}
	raw, err := json.Marshal(body.Result)
	if err != nil {
		t.Fatalf("failed to re-marshal result: %v", err)
	}
	if !strings.Contains(string(raw), `"cart_id":"cart-1"`) {
		t.Errorf("result %s missing cart summary", raw)
	}
}

func TestProgressHandlerNotFound(t *testing.T) {
	ts := newTestServer(t, &mockEngine{})

	resp, err := http.Get(ts.URL + "/progress?user_id=u1&conversation_id=c1")
	if err != nil {
		t.Fatalf("GET /progress error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	decodeResponse(t, resp)
}

func TestProgressHandlerRequiresKey(t *testing.T) {
	ts := newTestServer(t, &mockEngine{})

	resp, err := http.Get(ts.URL + "/progress?user_id=u1")
	if err != nil {
		t.Fatalf("GET /progress error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t, &mockEngine{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body.Status != string(models.APIStatusOK) {
		t.Errorf("body status = %q, want ok", body.Status)
	}
}
