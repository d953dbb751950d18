package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RenewOutputPath appends "-(n)" before the extension until exists reports
// false. A nil exists checks the local filesystem.
func RenewOutputPath(outputPath string, exists func(string) bool) string {
	if exists == nil {
		exists = func(p string) bool {
			_, err := os.Stat(p)
			return !os.IsNotExist(err)
		}
	}
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if !exists(outputPath) {
			return outputPath
		}
		index++
	}
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// OutputNameFromURL returns the last path element of a URL, or "download".
func OutputNameFromURL(link string) string {
	link = strings.SplitN(link, "?", 2)[0]
	parts := strings.Split(strings.TrimRight(link, "/"), "/")
	name := parts[len(parts)-1]
	if name == "" || strings.Contains(name, ":") {
		return "download"
	}
	return name
}

func ReadDownloadList(filePath string) ([]DownloadEntry, error) {
	log := GetLogger("config")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	var entries []DownloadEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyDownloadList
	}
	for i, entry := range entries {
		if entry.URL == "" {
			return nil, fmt.Errorf("missing URL for entry %d", i+1)
		}
		if entry.OutputPath == "" {
			entries[i].OutputPath = OutputNameFromURL(entry.URL)
		}
	}
	log.Debug().Int("count", len(entries)).Msg("Entries loaded from YAML")
	return entries, nil
}
