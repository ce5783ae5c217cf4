// Package config loads runtime configuration for the chat terminal client.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected with -c or -config.
//  3. Command-line flags.
//
// Supported flags
//
//	-a string     host:port of a chat server instance
//	-f string     path of the local history database
//	-t duration   how long to wait for a login or register reply
//
// A file looks like
//
//	{
//	  "server_addr": "127.0.0.1:6000",
//	  "history_path": "chat_history.db",
//	  "timeout": "5s"
//	}
package config
