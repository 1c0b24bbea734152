// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/luxfi/oraclevm/vms/oraclevm/config"
)

const (
	ConfigFileKey      = "config-file"
	HTTPHostKey        = "http-host"
	HTTPPortKey        = "http-port"
	AllowedOriginsKey  = "http-allowed-origins"
	DBDirKey           = "db-dir"
	AcceptIntervalKey  = "accept-interval"
	ShutdownTimeoutKey = "shutdown-timeout"
)

func AddFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFileKey, "", "JSON or YAML VM configuration file. Defaults are used when empty")
	flags.String(HTTPHostKey, "127.0.0.1", "Address of the HTTP server")
	flags.Uint16(HTTPPortKey, 9660, "Port of the HTTP server")
	flags.StringSlice(AllowedOriginsKey, []string{"*"}, "Origins allowed to access the HTTP server")
	flags.String(DBDirKey, "", "Directory of the registry database. State is kept in memory when empty")
	flags.Duration(AcceptIntervalKey, 2*time.Second, "Interval between block acceptances")
	flags.Duration(ShutdownTimeoutKey, 10*time.Second, "Maximum time to wait for in-flight requests on shutdown")
}

type Config struct {
	// VMConfig is the JSON configuration passed to Initialize.
	VMConfig        []byte
	HTTPAddress     string
	AllowedOrigins  []string
	DBDir           string
	AcceptInterval  time.Duration
	ShutdownTimeout time.Duration
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	configFile, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}

	vmConfig, err := readVMConfig(configFile)
	if err != nil {
		return nil, err
	}

	host, err := flags.GetString(HTTPHostKey)
	if err != nil {
		return nil, err
	}

	port, err := flags.GetUint16(HTTPPortKey)
	if err != nil {
		return nil, err
	}

	origins, err := flags.GetStringSlice(AllowedOriginsKey)
	if err != nil {
		return nil, err
	}

	dbDir, err := flags.GetString(DBDirKey)
	if err != nil {
		return nil, err
	}

	acceptInterval, err := flags.GetDuration(AcceptIntervalKey)
	if err != nil {
		return nil, err
	}
	if acceptInterval <= 0 {
		return nil, fmt.Errorf("%s must be positive", AcceptIntervalKey)
	}

	shutdownTimeout, err := flags.GetDuration(ShutdownTimeoutKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		VMConfig:        vmConfig,
		HTTPAddress:     net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10)),
		AllowedOrigins:  origins,
		DBDir:           dbDir,
		AcceptInterval:  acceptInterval,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

// readVMConfig returns the contents of path as JSON. YAML files are
// converted.
func readVMConfig(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err := config.ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return json.Marshal(cfg)
	default:
		return data, nil
	}
}
