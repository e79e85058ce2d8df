package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/liamcoop/labrules/internal/batch"
	"github.com/liamcoop/labrules/internal/config"
	"github.com/liamcoop/labrules/internal/logger"
	"github.com/liamcoop/labrules/rules"
)

// setupTestServer creates a server over the built-in panels with a quiet logger
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger.Init()
	logger.SetOutput(io.Discard)

	engine, err := rules.NewDefaultEngine()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	cfg := &config.Config{
		Port:            "0",
		Env:             "test",
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: time.Second,
		SlowRequest:     time.Second,
		MaxUploadBytes:  1 << 10,
	}

	srv, err := NewServer(cfg, engine)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health.Status != "healthy" || health.Panels != 6 {
		t.Errorf("Unexpected health response: %+v", health)
	}
}

func TestListPanels(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/panels")
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	var list PanelsListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list.Panels) != 6 {
		t.Fatalf("Expected 6 panels, got %d", len(list.Panels))
	}

	cbc := list.Panels[5]
	if cbc.TestID != 6 || cbc.Name != "Complete Blood Count" {
		t.Errorf("Unexpected panel: %+v", cbc)
	}
	if len(cbc.Fields) != 8 {
		t.Errorf("Expected 8 CBC fields, got %d", len(cbc.Fields))
	}
	if cbc.Outputs[len(cbc.Outputs)-1] != "PLT Count" {
		t.Errorf("Unexpected outputs: %v", cbc.Outputs)
	}
}

func TestGetPanel(t *testing.T) {
	ts := setupTestServer(t)

	testCases := []struct {
		path   string
		status int
	}{
		{"/api/v1/panels/3", http.StatusOK},
		{"/api/v1/panels/9", http.StatusNotFound},
		{"/api/v1/panels/abc", http.StatusBadRequest},
		{"/api/v1/panels/4/schema", http.StatusOK},
		{"/api/v1/panels/7/schema", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tc.path)
			if err != nil {
				t.Fatalf("Failed to send request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/evaluate", map[string]any{
		"testId": 3,
		"values": map[string]any{"eGFR": 90.01, "Creatinine": 1.0, "Gender": "X"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	want := `{"eGFR":{"classification":"Stage 1","recommendation":"Monitor kidney function."}}` + "\n"
	if string(body) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestEvaluateNumericGender(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/evaluate", map[string]any{
		"testId": 3,
		"values": map[string]any{"eGFR": 50, "Creatinine": 1.0, "Gender": 0},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	want := `{"eGFR":{"classification":"Stage 3","recommendation":"Seek medical advice."}}` + "\n"
	if string(body) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestEvaluateExplain(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/evaluate?explain=true", map[string]any{
		"testId": 6,
		"values": map[string]any{
			"HCT": 45, "MCV": 90, "WBC": 5000, "Neutrophile": 15,
			"Eosinophile": 2, "Monocyte": 4, "PLT Count": 250000, "Gender": "M",
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var explain struct {
		TestID  int                             `json:"testId"`
		Result  map[string]rules.Classification `json:"result"`
		Matched map[string]string               `json:"matched"`
		Omitted []string                        `json:"omitted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&explain); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if explain.Result["WBC"].Label != "เม็ดเลือดขาวต่ำอันตราย" {
		t.Errorf("WBC = %q", explain.Result["WBC"].Label)
	}
	if !strings.Contains(explain.Matched["WBC"], "Neutrophile") {
		t.Errorf("WBC matched %q, want the neutrophil condition", explain.Matched["WBC"])
	}
	if len(explain.Omitted) != 1 || explain.Omitted[0] != "Eosinophile" {
		t.Errorf("Omitted = %v, want [Eosinophile]", explain.Omitted)
	}
}

func TestEvaluateUnknownTest(t *testing.T) {
	ts := setupTestServer(t)
	before := logger.UnknownTests.Load()

	resp := postJSON(t, ts.URL+"/api/v1/evaluate", map[string]any{"testId": 99, "values": map[string]any{}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != `{"error":"Unknown lab test"}` {
		t.Errorf("body = %s", body)
	}
	if logger.UnknownTests.Load() != before+1 {
		t.Error("UnknownTests counter was not incremented")
	}
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	ts := setupTestServer(t)

	testCases := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{"testId": `, http.StatusBadRequest},
		{"missing testId", `{"values": {"Systolic": 120, "Diastolic": 80}}`, http.StatusBadRequest},
		{"missing field", `{"testId": 1, "values": {"Systolic": 120}}`, http.StatusUnprocessableEntity},
		{"missing values", `{"testId": 5}`, http.StatusUnprocessableEntity},
		{"type mismatch", `{"testId": 1, "values": {"Systolic": "120", "Diastolic": 80}}`, http.StatusUnprocessableEntity},
		{"string uric acid", `{"testId": 5, "values": {"Uric Acid": "5", "Gender": "M"}}`, http.StatusUnprocessableEntity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/evaluate", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("Failed to send request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Fatalf("Expected status %d, got %d", tc.status, resp.StatusCode)
			}

			var errResp ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if errResp.Error == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

const batchCSV = "hn_number,lab_item_name,lab_item_value\n" +
	"HN1,Systolic,165\n" +
	"HN1,Diastolic,95\n" +
	"HN1,Uric Acid,abc\n"

func TestBatchRawBody(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/batches", "text/csv", strings.NewReader(batchCSV))
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var report batch.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if report.Rows != 3 || len(report.Skipped) != 1 {
		t.Errorf("Rows = %d, Skipped = %d, want 3 and 1", report.Rows, len(report.Skipped))
	}
	if len(report.Patients) != 1 || len(report.Patients[0].Panels) != 1 {
		t.Fatalf("Unexpected patients: %+v", report.Patients)
	}

	items := report.Patients[0].Panels[0].Items
	if len(items) != 2 || items[0].Status != "very high" || items[1].Status != "high" {
		t.Errorf("Unexpected items: %+v", items)
	}
}

func TestBatchMultipart(t *testing.T) {
	ts := setupTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "results.csv")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := fw.Write([]byte(batchCSV)); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/v1/batches", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestBatchErrors(t *testing.T) {
	ts := setupTestServer(t)

	testCases := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"bad header", "text/csv", "a,b,c\n1,2,3\n", http.StatusBadRequest},
		{"multipart without file", "multipart/form-data; boundary=xyz", "--xyz--\r\n", http.StatusBadRequest},
		{"too large", "text/csv", "hn_number,lab_item_name,lab_item_value\n" + strings.Repeat("HN1,Systolic,120\n", 100), http.StatusRequestEntityTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/batches", tc.contentType, strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("Failed to send request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	ts := setupTestServer(t)

	postJSON(t, ts.URL+"/api/v1/evaluate", map[string]any{"testId": 1, "values": map[string]any{"Systolic": 1}})

	resp, err := http.Get(ts.URL + "/api/v1/metrics")
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	var metrics map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if metrics["http_422_total"] < 1 || metrics["rejected_inputs_total"] < 1 {
		t.Errorf("Unexpected metrics: %v", metrics)
	}
}

func TestPanelSchema(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/panels/6/schema")
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/schema+json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var doc struct {
		Title    string   `json:"title"`
		Required []string `json:"required"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if doc.Title != "Complete Blood Count" || len(doc.Required) != 8 {
		t.Errorf("Unexpected schema: %+v", doc)
	}
}
