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
	"errors"
	"net/http"

	"github.com/AleutianAI/aopenrich/services/aop/config"
	"github.com/AleutianAI/aopenrich/services/aop/enrichment"
	"github.com/AleutianAI/aopenrich/services/aop/expression"
	"github.com/AleutianAI/aopenrich/services/aop/significance"
	"github.com/AleutianAI/aopenrich/services/aop/stats"
)

// Sentinel errors for the analysis service.
var (
	// ErrReferenceNotLoaded indicates the service has no reference data.
	ErrReferenceNotLoaded = errors.New("reference data not loaded")

	// ErrUnknownAOP indicates an AOP id absent from the reference data.
	ErrUnknownAOP = errors.New("unknown AOP")

	// ErrAOPDisabled indicates an AOP that exists but is switched off in
	// the catalogue.
	ErrAOPDisabled = errors.New("AOP is not enabled")

	// ErrNoInput indicates neither an upload nor a demo dataset was given.
	ErrNoInput = errors.New("no input file or demo dataset provided")

	// ErrBothInputs indicates an upload and a demo were both given.
	ErrBothInputs = errors.New("provide either a file or a demo dataset, not both")

	// ErrUnknownDemo indicates a demo name missing from the configuration.
	ErrUnknownDemo = errors.New("unknown demo dataset")

	// ErrFileTooLarge indicates an upload over the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds the size limit")

	// ErrUnsupportedExtension indicates an upload with a disallowed extension.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrInvalidParameter indicates a malformed request parameter.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrEnrichmentFailed wraps unexpected enrichment failures.
	ErrEnrichmentFailed = errors.New("enrichment analysis failed")

	// ErrNetworkFailed wraps network assembly failures.
	ErrNetworkFailed = errors.New("network assembly failed")
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeFile        = "FILE_ERROR"
	CodeAOPData     = "AOP_DATA_ERROR"
	CodeEnrichment  = "ENRICHMENT_ERROR"
	CodeNetwork     = "NETWORK_ERROR"
	CodeConfig      = "CONFIG_ERROR"
	CodeGeneral     = "GENERAL_ERROR"
	CodeRateLimited = "RATE_LIMITED"
)

var friendlyMessages = map[string]string{
	CodeValidation:  "Please check your input data and try again.",
	CodeFile:        "There was a problem processing your file. Please ensure it's a valid CSV/TSV file with the correct format.",
	CodeEnrichment:  "The enrichment analysis could not be completed. This may be due to insufficient gene overlap or data quality issues.",
	CodeAOPData:     "The selected AOP pathway data is not available. Please try a different pathway.",
	CodeNetwork:     "The network visualization could not be generated. The analysis results are still available in the table.",
	CodeConfig:      "A system configuration issue occurred. Please contact support.",
	CodeGeneral:     "An unexpected error occurred. Please try again or contact support if the problem persists.",
	CodeRateLimited: "Too many requests. Please wait a moment and try again.",
}

// FriendlyMessage returns the user-facing text for an error code.
func FriendlyMessage(code string) string {
	if msg, ok := friendlyMessages[code]; ok {
		return msg
	}
	return friendlyMessages[CodeGeneral]
}

// ClassifyError maps an error to its HTTP status and error code.
func ClassifyError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""

	case errors.Is(err, expression.ErrEmptyFile),
		errors.Is(err, expression.ErrNoDataRows),
		errors.Is(err, expression.ErrMalformedFile),
		errors.Is(err, expression.ErrDuplicateHeader),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrUnsupportedExtension),
		errors.Is(err, ErrUnknownDemo):
		return http.StatusBadRequest, CodeFile

	case errors.Is(err, ErrReferenceNotLoaded):
		return http.StatusInternalServerError, CodeAOPData

	case errors.Is(err, ErrUnknownAOP),
		errors.Is(err, ErrAOPDisabled),
		errors.Is(err, enrichment.ErrNoKEs):
		return http.StatusBadRequest, CodeAOPData

	case errors.Is(err, ErrNoInput),
		errors.Is(err, ErrBothInputs),
		errors.Is(err, ErrInvalidParameter),
		errors.Is(err, expression.ErrColumnRequired),
		errors.Is(err, expression.ErrColumnNotFound),
		errors.Is(err, expression.ErrColumnsNotDistinct),
		errors.Is(err, expression.ErrInvalidColumnName),
		errors.Is(err, expression.ErrNoValidGenes),
		errors.Is(err, significance.ErrInvalidCutoff),
		errors.Is(err, significance.ErrInvalidThreshold),
		errors.Is(err, significance.ErrInvalidPercent),
		errors.Is(err, significance.ErrInvalidPolicy),
		errors.Is(err, stats.ErrUnknownAlternative),
		errors.Is(err, enrichment.ErrUnknownEmptyPolicy):
		return http.StatusBadRequest, CodeValidation

	case errors.Is(err, config.ErrInvalidConfig):
		return http.StatusInternalServerError, CodeConfig

	case errors.Is(err, ErrEnrichmentFailed):
		return http.StatusInternalServerError, CodeEnrichment

	case errors.Is(err, ErrNetworkFailed):
		return http.StatusInternalServerError, CodeNetwork
	}
	return http.StatusInternalServerError, CodeGeneral
}
