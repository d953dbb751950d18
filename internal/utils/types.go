package utils

import "errors"

type DownloadEntry struct {
	OutputPath string `yaml:"op"`
	URL        string `yaml:"link"`
	Engine     string `yaml:"engine,omitempty"`
}

const ToolUserAgent = "trickle/1.0"

var ErrEmptyDownloadList = errors.New("download list has no entries")
