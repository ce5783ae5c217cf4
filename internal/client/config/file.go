package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/chatmesh/internal/flagx"
	"github.com/dmitrijs2005/chatmesh/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of Config. Empty fields leave the
// current value alone.
type FileConfig struct {
	ServerAddr  string         `json:"server_addr" yaml:"server_addr"`
	HistoryPath string         `json:"history_path" yaml:"history_path"`
	Timeout     timex.Duration `json:"timeout" yaml:"timeout"`
}

// parseFile overlays cfg with the file named by -c or -config. A missing or
// invalid file panics.
func parseFile(cfg *Config) {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	if fc.ServerAddr != "" {
		cfg.ServerAddr = fc.ServerAddr
	}
	if fc.HistoryPath != "" {
		cfg.HistoryPath = fc.HistoryPath
	}
	if fc.Timeout.Duration != 0 {
		cfg.Timeout = fc.Timeout.Duration
	}
}
