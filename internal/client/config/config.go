package config

import "time"

type Config struct {
	ServerAddr  string
	HistoryPath string
	Timeout     time.Duration
}

// LoadDefaults populates c with defaults matching a local server.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "127.0.0.1:6000"
	c.HistoryPath = "chat_history.db"
	c.Timeout = 5 * time.Second
}

// LoadConfig applies defaults, then the config file, then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
