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
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/aopenrich/services/aop/config"
	"github.com/AleutianAI/aopenrich/services/aop/enrichment"
	"github.com/AleutianAI/aopenrich/services/aop/expression"
)

// Handlers contains the HTTP handlers for the AOP enrichment service.
type Handlers struct {
	svc     *Service
	limiter *RateLimiter
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// WithRateLimiter limits the analysis and preview endpoints.
func (h *Handlers) WithRateLimiter(rl *RateLimiter) *Handlers {
	h.limiter = rl
	return h
}

// AnalyzeForm is the form body of POST /analyze and POST /preview.
//
// The input is either a multipart "file" or a configured "demo" name.
type AnalyzeForm struct {
	AOPID             string `form:"aop_id" binding:"max=64"`
	Demo              string `form:"demo" binding:"max=100"`
	IDColumn          string `form:"id_column" binding:"max=100"`
	FCColumn          string `form:"fc_column" binding:"max=100"`
	PValueColumn      string `form:"pvalue_column" binding:"max=100"`
	PValueCutoff      string `form:"pvalue_cutoff" binding:"max=32"`
	LogFCThreshold    string `form:"logfc_threshold" binding:"max=32"`
	FisherAlternative string `form:"fisher_alternative" binding:"max=32"`
	Expand            bool   `form:"expand"`
	Format            string `form:"format" binding:"omitempty,oneof=json csv"`

	DatasetID   string `form:"dataset_id" binding:"max=200"`
	Stressor    string `form:"stressor" binding:"max=200"`
	Dosing      string `form:"dosing" binding:"max=200"`
	Owner       string `form:"owner" binding:"max=200"`
	Description string `form:"description" binding:"max=2000"`
}

func (f AnalyzeForm) columns() expression.ColumnSelection {
	return expression.ColumnSelection{ID: f.IDColumn, FC: f.FCColumn, PValue: f.PValueColumn}
}

func (f AnalyzeForm) metadata() ExperimentMetadata {
	return ExperimentMetadata{
		DatasetID:   strings.TrimSpace(f.DatasetID),
		Stressor:    strings.TrimSpace(f.Stressor),
		Dosing:      strings.TrimSpace(f.Dosing),
		Owner:       strings.TrimSpace(f.Owner),
		Description: strings.TrimSpace(f.Description),
	}
}

func (f AnalyzeForm) cutoff() (*float64, error) {
	s := strings.TrimSpace(f.PValueCutoff)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: pvalue_cutoff %q is not a number", ErrInvalidParameter, s)
	}
	return &v, nil
}

// input is a parsed table plus where it came from.
type input struct {
	table    *expression.Table
	filename string
	demo     *config.DemoDataset
}

// HandleHealth handles GET /aop/health.
//
// Description:
//
//	Returns the health status of the service. Always returns 200 if running.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /aop/ready.
//
// Description:
//
//	Reports whether reference data is loaded. Returns 503 Service
//	Unavailable until it is.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false)
func (h *Handlers) HandleReady(c *gin.Context) {
	if !h.svc.Ready() {
		c.Header("Retry-After", "30")
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:     true,
		Reference: h.svc.Reference().Summary(),
	})
}

// HandleListAOPs handles GET /aop/aops.
//
// Response:
//
//	200 OK: {"aops": []AOPInfo}
//	500 Internal Server Error: ErrorResponse when reference data is missing
func (h *Handlers) HandleListAOPs(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	if !h.svc.Ready() {
		h.writeError(c, slog.With("request_id", requestID, "handler", "HandleListAOPs"), ErrReferenceNotLoaded)
		return
	}
	c.JSON(http.StatusOK, gin.H{"aops": h.svc.AOPs()})
}

// HandleGetAOP handles GET /aop/aops/:id.
//
// Response:
//
//	200 OK: AOPDetail
//	400 Bad Request: ErrorResponse (unknown or disabled AOP)
func (h *Handlers) HandleGetAOP(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetAOP")

	detail, err := h.svc.AOPDetail(c.Param("id"))
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// HandleListDemos handles GET /aop/demos.
func (h *Handlers) HandleListDemos(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"demos": h.svc.Demos()})
}

// HandlePreview handles POST /aop/preview.
//
// Description:
//
//	Parses an uploaded table or demo dataset and returns its columns,
//	the first rows, detected column roles and a guessed identifier type.
//
// Request Body (multipart/form-data):
//
//	file: Expression table (.csv, .tsv or .txt), or
//	demo: Name of a configured demo dataset.
//	id_column, fc_column, pvalue_column: Optional column overrides.
//
// Response:
//
//	200 OK: PreviewResponse
//	400 Bad Request: ErrorResponse (FILE_ERROR or VALIDATION_ERROR)
func (h *Handlers) HandlePreview(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePreview")

	var form AnalyzeForm
	if err := c.ShouldBind(&form); err != nil {
		h.writeError(c, logger, fmt.Errorf("%w: %v", ErrInvalidParameter, err))
		return
	}
	in, err := h.readInput(c, form)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	sel := form.columns()
	if in.demo != nil {
		sel = ResolveColumns(in.table, sel, in.demo)
	}
	resp, err := h.svc.Preview(c.Request.Context(), in.table, sel)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleAnalyze handles POST /aop/analyze.
//
// Description:
//
//	Runs the enrichment pipeline for one AOP. Columns not named in the
//	request come from the demo configuration and then from detection.
//
// Request Body (multipart/form-data):
//
//	aop_id: Required. Pathway to test.
//	file or demo: Input table.
//	id_column, fc_column, pvalue_column: Column roles.
//	pvalue_cutoff: Gene p-value cutoff in (0, 1].
//	logfc_threshold: "1.0" style absolute threshold or "top N%".
//	fisher_alternative: two-sided, greater or less.
//	expand: Add gene nodes to the network.
//	format: json (default) or csv.
//	dataset_id, stressor, dosing, owner, description: Echoed metadata.
//
// Response:
//
//	200 OK: AnalyzeResponse, or text/csv when format=csv
//	400 Bad Request: ErrorResponse
//	429 Too Many Requests: ErrorResponse (RATE_LIMITED)
//	500 Internal Server Error: ErrorResponse
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var form AnalyzeForm
	if err := c.ShouldBind(&form); err != nil {
		h.writeError(c, logger, fmt.Errorf("%w: %v", ErrInvalidParameter, err))
		return
	}
	if strings.TrimSpace(form.AOPID) == "" {
		h.writeError(c, logger, fmt.Errorf("%w: aop_id is required", ErrInvalidParameter))
		return
	}
	cutoff, err := form.cutoff()
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	in, err := h.readInput(c, form)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	sel := ResolveColumns(in.table, form.columns(), in.demo)

	meta := form.metadata()
	meta.Filename = in.filename
	meta.UploadedAt = time.Now().UTC()

	resp, err := h.svc.Analyze(c.Request.Context(), in.table, AnalyzeRequest{
		AOPID:             form.AOPID,
		Columns:           sel,
		PValueCutoff:      cutoff,
		LogFCThreshold:    form.LogFCThreshold,
		FisherAlternative: form.FisherAlternative,
		Expand:            form.Expand,
		Metadata:          meta,
	})
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	logger.Info("Analysis served",
		"analysis_id", resp.AnalysisID,
		"aop_id", resp.AOP.ID,
		"format", cmp.Or(form.Format, "json"))

	if form.Format == "csv" {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, csvFilename(resp.AOP.ID)))
		c.Status(http.StatusOK)
		if err := enrichment.WriteCSV(c.Writer, &enrichment.Result{Rows: resp.Results}); err != nil {
			logger.Error("Failed to write CSV", "error", err)
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// readInput loads the uploaded file or demo dataset named by the request.
func (h *Handlers) readInput(c *gin.Context, form AnalyzeForm) (*input, error) {
	fh, err := c.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	demo := strings.TrimSpace(form.Demo)

	switch {
	case fh != nil && demo != "":
		return nil, ErrBothInputs
	case fh == nil && demo == "":
		return nil, ErrNoInput
	case demo != "":
		tbl, ds, err := h.svc.LoadDemo(demo)
		if err != nil {
			return nil, err
		}
		return &input{table: tbl, filename: ds.File, demo: &ds}, nil
	}

	upload := h.svc.Config().Upload
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !slices.Contains(upload.AllowedExtensions, ext) {
		return nil, fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedExtension, ext,
			strings.Join(upload.AllowedExtensions, ", "))
	}
	if fh.Size > upload.MaxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, fh.Size, upload.MaxFileBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	tbl, err := expression.ReadTable(io.LimitReader(f, upload.MaxFileBytes))
	if err != nil {
		return nil, err
	}
	return &input{table: tbl, filename: filepath.Base(fh.Filename)}, nil
}

// writeError logs err and writes the matching ErrorResponse.
func (h *Handlers) writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := ClassifyError(err)
	h.svc.Metrics().RecordError(code)

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "code", code, "error", err)
	} else {
		logger.Warn("Request rejected", "code", code, "error", err)
	}
	c.JSON(status, ErrorResponse{
		Error:   FriendlyMessage(code),
		Code:    code,
		Details: err.Error(),
	})
}

// getOrCreateRequestID returns the X-Request-ID header or a new UUID,
// echoing it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func csvFilename(aopID string) string {
	return "aop_enrichment_" + unsafeFilenameChars.ReplaceAllString(aopID, "_") + ".csv"
}
