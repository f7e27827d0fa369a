package config

import (
	"flag"
	"os"
	"time"
)

// ParseFlags parses all configuration flags from the process arguments.
//
// Flags:
//
//	-remote-url remote storage server base URL
//	-token bearer token for remote requests
//	-request-timeout remote request timeout (e.g., "30s", "1m")
//	-backend node store backend (memory|file|sqlite)
//	-store-path on-disk store location for the file and sqlite backends
//	-sync-interval foreground sync interval (e.g., "10s")
//	-background-sync-interval background sync interval (e.g., "1m")
//	-num-threads concurrent remote request limit
//	-listen-address local HTTP API listen address in form [host]:[port]
//	-metrics-address metrics listen address in form [host]:[port]
//	-c/-config json file path with configs
func ParseFlags() *StructuredConfig {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) *StructuredConfig {
	var remoteURL string
	var token string
	var requestTimeout time.Duration
	var backend string
	var storePath string
	var syncInterval time.Duration
	var backgroundSyncInterval time.Duration
	var numThreads int
	var listenAddress string
	var metricsAddress string
	var jsonConfigPath string

	fs.StringVar(&remoteURL, "remote-url", "", "Remote storage server base URL")
	fs.StringVar(&token, "token", "", "Bearer token for remote requests")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Remote request timeout (e.g., 30s, 1m)")
	fs.StringVar(&backend, "backend", "", "Node store backend (memory|file|sqlite)")
	fs.StringVar(&storePath, "store-path", "", "On-disk store location (file and sqlite backends)")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Foreground sync interval (e.g., 10s)")
	fs.DurationVar(&backgroundSyncInterval, "background-sync-interval", 0, "Background sync interval (e.g., 1m)")
	fs.IntVar(&numThreads, "num-threads", 0, "Concurrent remote request limit")
	fs.StringVar(&listenAddress, "listen-address", "", "Local HTTP API listen address host:port")
	fs.StringVar(&metricsAddress, "metrics-address", "", "Metrics listen address host:port")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	fs.Parse(args)

	return &StructuredConfig{
		App: App{
			ListenAddress:  listenAddress,
			MetricsAddress: metricsAddress,
		},
		Remote: Remote{
			BaseURL:        remoteURL,
			Token:          token,
			RequestTimeout: requestTimeout,
		},
		Storage: Storage{
			Backend: backend,
			Path:    storePath,
		},
		Sync: Sync{
			Interval:           syncInterval,
			BackgroundInterval: backgroundSyncInterval,
			NumThreads:         numThreads,
		},
		JSONFilePath: jsonConfigPath,
	}
}
