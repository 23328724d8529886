package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/voucherscan/internal/ocr"
	"github.com/MeKo-Tech/voucherscan/internal/utils"
)

// Result captures one voucher scan.
type Result struct {
	Source     string        `json:"source" yaml:"source"`
	Rectified  bool          `json:"rectified" yaml:"rectified"`
	Boundary   []utils.Point `json:"boundary,omitempty" yaml:"boundary,omitempty"`
	Regions    []string      `json:"regions" yaml:"regions"`
	Lines      []ocr.Line    `json:"lines,omitempty" yaml:"lines,omitempty"`
	MergedText []string      `json:"merged_text" yaml:"merged_text"`
	Codes      []string      `json:"codes" yaml:"codes"`
	Stored     bool          `json:"stored" yaml:"stored"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// FormatResults renders scan results in the requested output format: "text",
// "json" or "yaml".
func FormatResults(results []*Result, format string) (string, error) {
	switch format {
	case "", "text":
		return formatText(results), nil
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode results: %w", err)
		}
		return string(data), nil
	case "yaml":
		data, err := yaml.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("encode results: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

func formatText(results []*Result) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s\n", r.Source)
		fmt.Fprintf(&sb, "  rectified: %v\n", r.Rectified)
		if len(r.Codes) == 0 {
			sb.WriteString("  no voucher codes found\n")
			continue
		}
		for _, code := range r.Codes {
			fmt.Fprintf(&sb, "  code: %s\n", code)
		}
	}
	return sb.String()
}
