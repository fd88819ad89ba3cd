// =============================================================================
// Weight Merge - Main Entry Point
// =============================================================================
//
// USAGE:
//   weightmerge merge      - Merge one sales export with a weight reference
//   weightmerge batch      - Merge every sales export in the input directory
//   weightmerge validate   - Check configuration, profiles and inputs
//   weightmerge serve      - Serve the merge endpoint over HTTP
//   weightmerge version    - Display the application version
//
// LAYOUT:
//   - cmd/        : CLI command definitions (Cobra)
//   - internal/   : decoding, normalization, the merge pipeline, reports,
//                   configuration, logging and the HTTP server
//   - pkg/        : shared file utilities
//   - examples/   : sample config.yaml and merge profiles (YAML)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/weight-merge/cmd"
)

func main() {
	cmd.Execute()
}
