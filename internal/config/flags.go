package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-d data directory for per-space databases
//	-r registry file path
//	-remote remote sync host websocket URL
//	-c/-config json file path with configs
//	-device-token device token announced to the remote host
//	-device-type device type label
//	-dial-timeout websocket dial timeout (e.g., "30s")
//	-tick-interval idle poll interval (e.g., "1s")
//	-reask-after quiescent re-ask delay (e.g., "15s")
func ParseFlags() *StructuredConfig {
	var dataDir string
	var registryFile string
	var remoteURL string
	var jsonConfigPath string
	var deviceToken string
	var deviceType string
	var dialTimeout time.Duration
	var tickInterval time.Duration
	var reaskAfter time.Duration

	flag.StringVar(&dataDir, "d", "", "Data directory for per-space databases")
	flag.StringVar(&registryFile, "r", "", "Registry file path")
	flag.StringVar(&remoteURL, "remote", "", "Remote sync host websocket URL")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&deviceToken, "device-token", "", "Device token")
	flag.StringVar(&deviceType, "device-type", "", "Device type label")
	flag.DurationVar(&dialTimeout, "dial-timeout", 0, "Websocket dial timeout (e.g., 30s)")
	flag.DurationVar(&tickInterval, "tick-interval", 0, "Idle poll interval (e.g., 1s)")
	flag.DurationVar(&reaskAfter, "reask-after", 0, "Quiescent re-ask delay (e.g., 15s)")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			DataDir:      dataDir,
			RegistryFile: registryFile,
		},
		Device: Device{
			Token: deviceToken,
			Type:  deviceType,
		},
		Remote: Remote{
			URL:         remoteURL,
			DialTimeout: dialTimeout,
		},
		Workers: Workers{
			TickInterval: tickInterval,
			ReaskAfter:   reaskAfter,
		},
		JSONFilePath: jsonConfigPath,
	}
}
