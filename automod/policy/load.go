package policy

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reads a lexicon from a JSON or YAML file, selected by file extension, and validates it.
func LoadFile(p string) (*Lexicon, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var lex Lexicon
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		if err := json.Unmarshal(raw, &lex); err != nil {
			return nil, fmt.Errorf("parsing policy JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &lex); err != nil {
			return nil, fmt.Errorf("parsing policy YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported policy file type: %s", p)
	}

	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}
