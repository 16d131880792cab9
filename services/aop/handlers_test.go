// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aop

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	handlers := NewHandlers(svc)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

// multipartRequest builds a POST with the given fields and, when filename
// is non-empty, a "file" part.
func multipartRequest(t *testing.T, path string, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v (body %s)", err, w.Body.String())
	}
	return resp
}

func TestHandlers_HandleHealth(t *testing.T) {
	svc, _ := testService(t)
	router := setupTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/aop/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
}

func TestHandlers_HandleReady(t *testing.T) {
	t.Run("loaded", func(t *testing.T) {
		svc, _ := testService(t)
		w := httptest.NewRecorder()
		setupTestRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/aop/ready", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var resp ReadyResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if !resp.Ready {
			t.Error("expected Ready=true")
		}
		if resp.Reference.AOPs != 3 {
			t.Errorf("expected 3 AOPs, got %d", resp.Reference.AOPs)
		}
	})

	t.Run("not loaded", func(t *testing.T) {
		w := httptest.NewRecorder()
		setupTestRouter(NewService(nil, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/aop/ready", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
		if w.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	})
}

func TestHandlers_HandleListAOPs(t *testing.T) {
	svc, _ := testService(t)
	w := httptest.NewRecorder()
	setupTestRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/aop/aops", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp struct {
		AOPs []AOPInfo `json:"aops"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.AOPs) != 1 || resp.AOPs[0].ID != "AOP:1" {
		t.Errorf("expected only AOP:1, got %+v", resp.AOPs)
	}
}

func TestHandlers_HandleListAOPs_NoReference(t *testing.T) {
	w := httptest.NewRecorder()
	setupTestRouter(NewService(nil, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/aop/aops", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if got := decodeError(t, w).Code; got != CodeAOPData {
		t.Errorf("expected code %s, got %s", CodeAOPData, got)
	}
}

func TestHandlers_HandleGetAOP(t *testing.T) {
	svc, _ := testService(t)
	router := setupTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/aop/aops/AOP:1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var detail AOPDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(detail.KEs) != 3 || detail.KEs[0].Title != "Receptor activation" {
		t.Errorf("unexpected KEs: %+v", detail.KEs)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/aop/aops/AOP:404", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if got := decodeError(t, w).Code; got != CodeAOPData {
		t.Errorf("expected code %s, got %s", CodeAOPData, got)
	}
}

func TestHandlers_HandleListDemos(t *testing.T) {
	svc, _ := testService(t)
	w := httptest.NewRecorder()
	setupTestRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/aop/demos", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if strings.Contains(w.Body.String(), "demo.csv") {
		t.Error("demo file paths must not be exposed")
	}
	if !strings.Contains(w.Body.String(), `"name":"demo"`) {
		t.Errorf("expected demo in listing, got %s", w.Body.String())
	}
}

func TestHandlers_HandleAnalyze_Upload(t *testing.T) {
	svc, _ := testService(t)
	router := setupTestRouter(svc)

	req := multipartRequest(t, "/v1/aop/analyze", map[string]string{
		"aop_id":   "AOP:1",
		"stressor": "TO901317",
	}, "dataset.csv", testTable)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected request id echoed, got %q", got)
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Parameters.Columns != testColumns {
		t.Errorf("expected detected columns %+v, got %+v", testColumns, resp.Parameters.Columns)
	}
	if resp.Metadata.Filename != "dataset.csv" || resp.Metadata.Stressor != "TO901317" {
		t.Errorf("unexpected metadata %+v", resp.Metadata)
	}
	if len(resp.Results) != 3 || resp.Results[0].KEID != "KE1" {
		t.Errorf("unexpected results %+v", resp.Results)
	}
	if resp.Summary.SignificantGenes != 2 {
		t.Errorf("expected 2 significant genes, got %d", resp.Summary.SignificantGenes)
	}
}

func TestHandlers_HandleAnalyze_Demo(t *testing.T) {
	svc, _ := testService(t)
	router := setupTestRouter(svc)

	req := multipartRequest(t, "/v1/aop/analyze", map[string]string{
		"aop_id":          "AOP:1",
		"demo":            "demo",
		"logfc_threshold": "top 50%",
		"expand":          "true",
	}, "", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Metadata.Filename != "demo.csv" {
		t.Errorf("expected demo filename, got %q", resp.Metadata.Filename)
	}
	if !resp.Parameters.LogFCPolicy.IsPercentile() {
		t.Errorf("expected percentile policy, got %s", resp.Parameters.LogFCPolicy)
	}
	if _, genes, _, _ := resp.Network.Count(); genes == 0 {
		t.Error("expected gene nodes in expanded network")
	}
}

func TestHandlers_HandleAnalyze_CSV(t *testing.T) {
	svc, _ := testService(t)
	router := setupTestRouter(svc)

	req := multipartRequest(t, "/v1/aop/analyze", map[string]string{
		"aop_id": "AOP:1",
		"format": "csv",
	}, "dataset.tsv", strings.ReplaceAll(testTable, ",", "\t"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="aop_enrichment_AOP_1.csv"` {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ke_id,ke_title,ke_type,pvalue,fdr") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "KE1,") {
		t.Errorf("expected KE1 first, got %q", lines[1])
	}
}

func TestHandlers_HandleAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		filename   string
		content    string
		wantStatus int
		wantCode   string
	}{
		{"missing aop id", map[string]string{"demo": "demo"}, "", "", http.StatusBadRequest, CodeValidation},
		{"no input", map[string]string{"aop_id": "AOP:1"}, "", "", http.StatusBadRequest, CodeValidation},
		{"both inputs", map[string]string{"aop_id": "AOP:1", "demo": "demo"}, "a.csv", testTable, http.StatusBadRequest, CodeValidation},
		{"unknown demo", map[string]string{"aop_id": "AOP:1", "demo": "nope"}, "", "", http.StatusBadRequest, CodeFile},
		{"bad extension", map[string]string{"aop_id": "AOP:1"}, "a.xlsx", testTable, http.StatusBadRequest, CodeFile},
		{"empty file", map[string]string{"aop_id": "AOP:1"}, "a.csv", "", http.StatusBadRequest, CodeFile},
		{"bad cutoff", map[string]string{"aop_id": "AOP:1", "pvalue_cutoff": "abc"}, "a.csv", testTable, http.StatusBadRequest, CodeValidation},
		{"cutoff out of range", map[string]string{"aop_id": "AOP:1", "pvalue_cutoff": "0"}, "a.csv", testTable, http.StatusBadRequest, CodeValidation},
		{"bad format", map[string]string{"aop_id": "AOP:1", "format": "xml"}, "a.csv", testTable, http.StatusBadRequest, CodeValidation},
		{"bad alternative", map[string]string{"aop_id": "AOP:1", "fisher_alternative": "sideways"}, "a.csv", testTable, http.StatusBadRequest, CodeValidation},
		{"disabled aop", map[string]string{"aop_id": "AOP:2"}, "a.csv", testTable, http.StatusBadRequest, CodeAOPData},
		{"undetectable columns", map[string]string{"aop_id": "AOP:1"}, "a.csv", "x,y\n1,2\n", http.StatusBadRequest, CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := testService(t)
			w := httptest.NewRecorder()
			setupTestRouter(svc).ServeHTTP(w, multipartRequest(t, "/v1/aop/analyze", tt.fields, tt.filename, tt.content))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			resp := decodeError(t, w)
			if resp.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s (%s)", tt.wantCode, resp.Code, resp.Details)
			}
			if resp.Error != FriendlyMessage(tt.wantCode) {
				t.Errorf("expected friendly message, got %q", resp.Error)
			}
		})
	}
}

func TestHandlers_HandleAnalyze_FileTooLarge(t *testing.T) {
	svc, metrics := testService(t)
	svc.Config().Upload.MaxFileBytes = 10
	w := httptest.NewRecorder()
	setupTestRouter(svc).ServeHTTP(w, multipartRequest(t, "/v1/aop/analyze",
		map[string]string{"aop_id": "AOP:1"}, "a.csv", testTable))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if got := decodeError(t, w).Code; got != CodeFile {
		t.Errorf("expected code %s, got %s", CodeFile, got)
	}
	if got := counterValue(t, metrics.ErrorsTotal.WithLabelValues(CodeFile)); got != 1 {
		t.Errorf("expected 1 FILE_ERROR counted, got %v", got)
	}
}

func TestHandlers_HandlePreview(t *testing.T) {
	svc, _ := testService(t)
	w := httptest.NewRecorder()
	setupTestRouter(svc).ServeHTTP(w, multipartRequest(t, "/v1/aop/preview", nil, "dataset.csv", testTable))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp PreviewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.RowCount != 4 || len(resp.Head) != 4 {
		t.Errorf("unexpected row counts: %d rows, %d head", resp.RowCount, len(resp.Head))
	}
	if resp.Detected.Selection() != testColumns {
		t.Errorf("unexpected detection %+v", resp.Detected)
	}
}

func TestHandlers_RateLimited(t *testing.T) {
	svc, metrics := testService(t)
	limiter := NewRateLimiter(0.001, 1).WithMetrics(metrics)
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc).WithRateLimiter(limiter))

	fields := map[string]string{"aop_id": "AOP:1", "demo": "demo"}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/v1/aop/analyze", fields, "", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("first request: expected %d, got %d", http.StatusOK, w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/v1/aop/analyze", fields, "", ""))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected %d, got %d", http.StatusTooManyRequests, w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if got := decodeError(t, w).Code; got != CodeRateLimited {
		t.Errorf("expected code %s, got %s", CodeRateLimited, got)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/aop/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health must not be rate limited, got %d", w.Code)
	}
}
