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

// FileConfig is the on-disk shape of the configuration. Durations accept
// both "1s" and integer nanoseconds. Only fields present in the file
// override the current values.
type FileConfig struct {
	ListenAddr     string         `json:"listen_addr" yaml:"listen_addr"`
	HTTPAddr       string         `json:"http_addr" yaml:"http_addr"`
	GRPCAddr       string         `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDSN    string         `json:"database_dsn" yaml:"database_dsn"`
	Broker         string         `json:"broker" yaml:"broker"`
	RedisAddr      string         `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword  string         `json:"redis_password" yaml:"redis_password"`
	RedisDB        int            `json:"redis_db" yaml:"redis_db"`
	NATSURL        string         `json:"nats_url" yaml:"nats_url"`
	Workers        int            `json:"workers" yaml:"workers"`
	MaxFrameSize   int            `json:"max_frame_size" yaml:"max_frame_size"`
	SendQueueSize  int            `json:"send_queue_size" yaml:"send_queue_size"`
	ReconnectDelay timex.Duration `json:"reconnect_delay" yaml:"reconnect_delay"`
	LogLevel       string         `json:"log_level" yaml:"log_level"`
	InstanceID     string         `json:"instance_id" yaml:"instance_id"`
}

// parseFile loads the file named by -c or -config into config. Files
// ending in .yaml or .yml are read as YAML, anything else as JSON. A
// missing or invalid file panics.
func parseFile(config *Config) {

	path := flagx.ConfigFile(os.Args[1:])

	// nothing to load
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.Broker, c.Broker)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setString(&config.NATSURL, c.NATSURL)
	setInt(&config.Workers, c.Workers)
	setInt(&config.MaxFrameSize, c.MaxFrameSize)
	setInt(&config.SendQueueSize, c.SendQueueSize)
	if c.ReconnectDelay.Duration != 0 {
		config.ReconnectDelay = c.ReconnectDelay.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.InstanceID, c.InstanceID)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
