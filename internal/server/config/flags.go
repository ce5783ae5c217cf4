package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/chatmesh/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     TCP listen address (e.g., ":6000")
//	-w string     HTTP address for /metrics, /healthz and /ws
//	-g string     gRPC health address
//	-d string     PostgreSQL DSN or memory://
//	-b string     broker: redis, nats or memory
//	-r string     Redis address
//	-rp string    Redis password
//	-rdb int      Redis database
//	-n string     NATS URL
//	-k int        concurrent connections
//	-m int        maximum frame size in bytes
//	-q int        per-connection send queue
//	-t duration   broker reconnect delay (e.g., "2s")
//	-l string     log level
//	-i string     instance id
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-w", "-g", "-d", "-b", "-r", "-rp", "-rdb", "-n", "-k", "-m", "-q", "-t", "-l", "-i",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "TCP address clients connect to")
	fs.StringVar(&config.HTTPAddr, "w", config.HTTPAddr, "HTTP address for metrics and websocket")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC health address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Broker, "b", config.Broker, "broker kind")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "rp", config.RedisPassword, "redis password")
	fs.IntVar(&config.RedisDB, "rdb", config.RedisDB, "redis database")
	fs.StringVar(&config.NATSURL, "n", config.NATSURL, "NATS URL")
	fs.IntVar(&config.Workers, "k", config.Workers, "concurrent connections")
	fs.IntVar(&config.MaxFrameSize, "m", config.MaxFrameSize, "maximum frame size")
	fs.IntVar(&config.SendQueueSize, "q", config.SendQueueSize, "per-connection send queue")
	fs.DurationVar(&config.ReconnectDelay, "t", config.ReconnectDelay, "broker reconnect delay")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.InstanceID, "i", config.InstanceID, "instance id")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
