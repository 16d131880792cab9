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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all AOP enrichment routes with the router.
//
// Description:
//
//	Registers the /aop/* endpoints with the given Gin router group. When
//	the handlers carry a rate limiter it guards the preview and analyze
//	endpoints only.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	h - The handlers instance
//
// Endpoints:
//
//	GET  /v1/aop/health - Liveness
//	GET  /v1/aop/ready - Reference data loaded
//	GET  /v1/aop/aops - List selectable AOPs
//	GET  /v1/aop/aops/:id - AOP key events and relationships
//	GET  /v1/aop/demos - List demo datasets
//	POST /v1/aop/preview - Describe an input table
//	POST /v1/aop/analyze - Run the enrichment pipeline
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	aop := rg.Group("/aop")
	{
		aop.GET("/health", h.HandleHealth)
		aop.GET("/ready", h.HandleReady)
		aop.GET("/aops", h.HandleListAOPs)
		aop.GET("/aops/:id", h.HandleGetAOP)
		aop.GET("/demos", h.HandleListDemos)

		limited := aop.Group("")
		if h.limiter != nil {
			limited.Use(h.limiter.Middleware())
		}
		limited.POST("/preview", h.HandlePreview)
		limited.POST("/analyze", h.HandleAnalyze)
	}
}
