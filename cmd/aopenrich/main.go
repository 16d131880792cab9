// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command aopenrich tests Adverse Outcome Pathway key events for
// enrichment of differentially expressed genes.
//
// Usage:
//
//	aopenrich serve --config aopenrich.yaml
//	aopenrich analyze --aop AOP:1 --input results.tsv
//	aopenrich analyze --aop AOP:1 --demo pxr-to90137 --format csv --output out.csv
//	aopenrich preview --input results.tsv
//	aopenrich aops
//	aopenrich validate-data
//
// Example requests against a running server:
//
//	curl http://localhost:8080/v1/aop/aops | jq
//	curl -F aop_id=AOP:1 -F file=@results.tsv http://localhost:8080/v1/aop/analyze
package main

import (
	"os"

	"github.com/AleutianAI/aopenrich/pkg/ux"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		ux.Error(cmd.ErrOrStderr(), "Error", err.Error())
		os.Exit(1)
	}
}
