package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pfm/internal/core"
)

// categoriesFile is the YAML shape of CATEGORIES_FILE:
//
//	categories:
//	  - Groceries
//	  - Rent
type categoriesFile struct {
	Categories []string `yaml:"categories"`
}

// LoadCategories returns the budget categories from path, or the default
// list when path is empty. Blank and duplicate (case-insensitive) entries
// are dropped.
func LoadCategories(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return append([]string(nil), core.DefaultCategories...), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse categories file %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(f.Categories))
	out := make([]string, 0, len(f.Categories))
	for _, c := range f.Categories {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("categories file %s lists no categories", path)
	}
	return out, nil
}
