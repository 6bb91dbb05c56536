// Package keys builds the object storage keys datasets are published under.
package keys

import (
	"fmt"
	"path"
	"strings"
)

// sanitizeKey replaces spaces with hyphens and lowercases the string.
func sanitizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
}

// Dataset is the key of one country's extracted place collection.
func Dataset(dataset, countryCode string) string {
	return fmt.Sprintf("datasets/%s/%s.geojson", sanitizeKey(dataset), sanitizeKey(countryCode))
}

// Optimized is the key of a dataset's web collection.
func Optimized(dataset string) string {
	return fmt.Sprintf("web/%s.geojson", sanitizeKey(dataset))
}

// Census is the key of a census table for a geography level.
func Census(level string) string {
	return fmt.Sprintf("census/%s.json", sanitizeKey(level))
}

// Boundaries is the key of a boundary file for a geography level.
func Boundaries(level string) string {
	return fmt.Sprintf("boundaries/%s.geojson", sanitizeKey(level))
}

// Report is the key of an import run's report.
func Report(runID string) string {
	return fmt.Sprintf("reports/%s.json", sanitizeKey(runID))
}

// ParseDataset is the inverse of Dataset. Web collections parse with an
// empty country code.
func ParseDataset(key string) (dataset, countryCode string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "datasets" && path.Ext(parts[2]) == ".geojson":
		return parts[1], strings.ToUpper(strings.TrimSuffix(parts[2], ".geojson")), true
	case len(parts) == 2 && parts[0] == "web" && path.Ext(parts[1]) == ".geojson":
		return strings.TrimSuffix(parts[1], ".geojson"), "", true
	}
	return "", "", false
}
