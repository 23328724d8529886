package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
)

// extractArtifact captures one extraction call for offline inspection.
type extractArtifact struct {
	Input   string   `json:"input"`
	Pattern string   `json:"pattern"`
	Codes   []string `json:"codes"`
}

// dumpArtifact writes the artifact under a content-derived filename so
// repeated runs on the same input overwrite instead of piling up.
func (e *Extractor) dumpArtifact(input string, codes []string) {
	sum := sha256.Sum256([]byte(input))
	name := "extract_" + hex.EncodeToString(sum[:8]) + ".json"

	data, err := json.MarshalIndent(extractArtifact{
		Input:   input,
		Pattern: codePattern.String(),
		Codes:   codes,
	}, "", "  ")
	if err != nil {
		e.log.Warn("encode extraction artifact", "error", err)
		return
	}
	if err := os.MkdirAll(e.debugDir, 0o750); err != nil {
		e.log.Warn("create debug directory", "dir", e.debugDir, "error", err)
		return
	}
	path := filepath.Join(e.debugDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		e.log.Warn("write extraction artifact", "path", path, "error", err)
	}
}
