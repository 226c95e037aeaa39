package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chordmesh/internal/logger"
)

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

type LoggerConfig struct {
	Active   bool             `yaml:"active"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

// RingConfig governs the Chord periodic maintenance loop (C2/C5).
type RingConfig struct {
	SuccessorListSize        int           `yaml:"successorListSize"`
	StabilizeInterval        time.Duration `yaml:"stabilizeInterval"`
	FixFingersInterval       time.Duration `yaml:"fixFingersInterval"`
	CheckPredecessorInterval time.Duration `yaml:"checkPredecessorInterval"`
}

// KBucketConfig governs the k-bucket routing table (C3).
type KBucketConfig struct {
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// StorageConfig governs the persistent resource store (C7).
type StorageConfig struct {
	Path          string        `yaml:"path"`
	MaxSizeBytes  int64         `yaml:"maxSizeBytes"`
	PruneInterval time.Duration `yaml:"pruneInterval"`
}

type RegisterConfig struct {
	Enabled      bool   `yaml:"enabled"`
	HostedZoneID string `yaml:"hostedZoneId"`
	DomainSuffix string `yaml:"domainSuffix"`
	TTL          int64  `yaml:"ttl"`
}

type BootstrapConfig struct {
	Mode     string         `yaml:"mode"` // init|static|dns
	DNSName  string         `yaml:"dnsName"`
	SRV      bool           `yaml:"srv"`
	Service  string         `yaml:"service"`
	Proto    string         `yaml:"proto"`
	Resolver string         `yaml:"resolver"`
	Port     int            `yaml:"port"`
	Peers    []string       `yaml:"peers"`
	Register RegisterConfig `yaml:"register"`
}

type NodeConfig struct {
	IdentityKeyFile string `yaml:"identityKeyFile"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Mode            string `yaml:"mode"` // public|private: which local interface to auto-pick
}

type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Ring      RingConfig      `yaml:"ring"`
	KBucket   KBucketConfig   `yaml:"kbucket"`
	Storage   StorageConfig   `yaml:"storage"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Node      NodeConfig      `yaml:"node"`
}

// LoadConfig loads the configuration from a YAML file at the given path.
//
// This function performs only syntactic parsing of the YAML file. To
// validate the configuration structure and check for missing or
// invalid fields, call cfg.ValidateConfig() after loading.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration.
//
// Supported overrides:
//
//	NODE_IDENTITY_KEY_FILE -> cfg.Node.IdentityKeyFile
//	NODE_HOST              -> cfg.Node.Host
//	NODE_PORT              -> cfg.Node.Port
//	BOOTSTRAP_MODE         -> cfg.Bootstrap.Mode
//	BOOTSTRAP_DNSNAME      -> cfg.Bootstrap.DNSName
//	BOOTSTRAP_SRV          -> cfg.Bootstrap.SRV
//	BOOTSTRAP_PORT         -> cfg.Bootstrap.Port
//	BOOTSTRAP_PEERS        -> cfg.Bootstrap.Peers (comma-separated)
//	REGISTER_ENABLED       -> cfg.Bootstrap.Register.Enabled
//	REGISTER_ZONE_ID       -> cfg.Bootstrap.Register.HostedZoneID
//	REGISTER_SUFFIX        -> cfg.Bootstrap.Register.DomainSuffix
//	REGISTER_TTL           -> cfg.Bootstrap.Register.TTL
//	TRACE_ENABLED          -> cfg.Telemetry.Tracing.Enabled
//	TRACE_EXPORTER         -> cfg.Telemetry.Tracing.Exporter
//	TRACE_ENDPOINT         -> cfg.Telemetry.Tracing.Endpoint
//	LOGGER_ENABLED         -> cfg.Logger.Active
//	LOGGER_LEVEL           -> cfg.Logger.Level
//	LOGGER_ENCODING        -> cfg.Logger.Encoding
//	LOGGER_MODE            -> cfg.Logger.Mode
//	LOGGER_FILE_PATH       -> cfg.Logger.File.Path
func (cfg *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NODE_IDENTITY_KEY_FILE"); v != "" {
		cfg.Node.IdentityKeyFile = v
	}
	if v := os.Getenv("NODE_HOST"); v != "" {
		cfg.Node.Host = v
	}
	if v := os.Getenv("NODE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Node.Port = port
		}
	}

	if v := os.Getenv("BOOTSTRAP_MODE"); v != "" {
		cfg.Bootstrap.Mode = v
	}
	if v := os.Getenv("BOOTSTRAP_DNSNAME"); v != "" {
		cfg.Bootstrap.DNSName = v
	}
	if v := os.Getenv("BOOTSTRAP_SRV"); v != "" {
		cfg.Bootstrap.SRV = parseBool(v)
	}
	if v := os.Getenv("BOOTSTRAP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Bootstrap.Port = port
		}
	}
	if v := os.Getenv("BOOTSTRAP_PEERS"); v != "" {
		cfg.Bootstrap.Peers = strings.Split(v, ",")
	}
	if v := os.Getenv("REGISTER_ENABLED"); v != "" {
		cfg.Bootstrap.Register.Enabled = parseBool(v)
	}
	if v := os.Getenv("REGISTER_ZONE_ID"); v != "" {
		cfg.Bootstrap.Register.HostedZoneID = v
	}
	if v := os.Getenv("REGISTER_SUFFIX"); v != "" {
		cfg.Bootstrap.Register.DomainSuffix = v
	}
	if v := os.Getenv("REGISTER_TTL"); v != "" {
		if ttl, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Bootstrap.Register.TTL = ttl
		}
	}

	if v := os.Getenv("TRACE_ENABLED"); v != "" {
		cfg.Telemetry.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.Tracing.Exporter = v
	}
	if v := os.Getenv("TRACE_ENDPOINT"); v != "" {
		cfg.Telemetry.Tracing.Endpoint = v
	}

	if v := os.Getenv("LOGGER_ENABLED"); v != "" {
		cfg.Logger.Active = parseBool(v)
	}
	if v := os.Getenv("LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LOGGER_ENCODING"); v != "" {
		cfg.Logger.Encoding = v
	}
	if v := os.Getenv("LOGGER_MODE"); v != "" {
		cfg.Logger.Mode = v
	}
	if v := os.Getenv("LOGGER_FILE_PATH"); v != "" {
		cfg.Logger.File.Path = v
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

// ValidateConfig performs structural validation of the loaded
// configuration. All detected issues are accumulated and returned as
// a single error; if the configuration is valid, it returns nil.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	// --- Logger ---
	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
		if cfg.Logger.File.MaxSize < 0 || cfg.Logger.File.MaxBackups < 0 || cfg.Logger.File.MaxAge < 0 {
			errs = append(errs, "logger.file.* values must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	// --- Ring / k-bucket / storage ---
	if cfg.Ring.SuccessorListSize <= 0 {
		errs = append(errs, "ring.successorListSize must be > 0")
	}
	if cfg.Ring.StabilizeInterval <= 0 {
		errs = append(errs, "ring.stabilizeInterval must be > 0")
	}
	if cfg.Ring.FixFingersInterval <= 0 {
		errs = append(errs, "ring.fixFingersInterval must be > 0")
	}
	if cfg.Ring.CheckPredecessorInterval <= 0 {
		errs = append(errs, "ring.checkPredecessorInterval must be > 0")
	}
	if cfg.KBucket.RefreshInterval <= 0 {
		errs = append(errs, "kbucket.refreshInterval must be > 0")
	}
	if cfg.Storage.MaxSizeBytes < 0 {
		errs = append(errs, "storage.maxSizeBytes must be >= 0 (0 means unbounded)")
	}
	if cfg.Storage.PruneInterval <= 0 {
		errs = append(errs, "storage.pruneInterval must be > 0")
	}

	// --- Bootstrap ---
	b := cfg.Bootstrap
	switch b.Mode {
	case "dns":
		if b.DNSName == "" {
			errs = append(errs, "bootstrap.dnsName is required in mode=dns")
		}
		if !b.SRV && b.Port <= 0 {
			errs = append(errs, "bootstrap.port must be > 0 when using A/AAAA (srv=false)")
		}
		if b.Register.Enabled {
			if b.Register.HostedZoneID == "" {
				errs = append(errs, "bootstrap.register.hostedZoneId is required when register.enabled=true")
			}
			if b.Register.DomainSuffix == "" {
				errs = append(errs, "bootstrap.register.domainSuffix is required when register.enabled=true")
			}
			if b.Register.TTL <= 0 {
				errs = append(errs, "bootstrap.register.ttl must be > 0 when register.enabled=true")
			}
		}
	case "static":
		for _, p := range b.Peers {
			if _, _, err := net.SplitHostPort(p); err != nil {
				errs = append(errs, fmt.Sprintf("invalid peer address %q in bootstrap.peers: %v", p, err))
			}
		}
	case "init":
		// first node of the ring, no extra constraints
	default:
		errs = append(errs, fmt.Sprintf("invalid bootstrap.mode: %s (must be dns, static or init)", b.Mode))
	}

	// --- Node ---
	if cfg.Node.Port < 0 || cfg.Node.Port > 65535 {
		errs = append(errs, fmt.Sprintf("node.port must be in [0,65535], got %d", cfg.Node.Port))
	}
	switch cfg.Node.Mode {
	case "public", "private":
	default:
		errs = append(errs, fmt.Sprintf("invalid node.mode: %s", cfg.Node.Mode))
	}

	// --- Telemetry ---
	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s (only stdout is wired; see DESIGN.md)", cfg.Telemetry.Tracing.Exporter))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig prints the loaded configuration at DEBUG level. Useful
// for debugging startup issues and verifying that the configuration
// file parsed the way the operator expected.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		// Logger
		logger.F("logger.active", cfg.Logger.Active),
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("logger.file.path", cfg.Logger.File.Path),
		logger.F("logger.file.maxSizeMB", cfg.Logger.File.MaxSize),
		logger.F("logger.file.maxBackups", cfg.Logger.File.MaxBackups),
		logger.F("logger.file.maxAgeDays", cfg.Logger.File.MaxAge),
		logger.F("logger.file.compress", cfg.Logger.File.Compress),

		// Ring
		logger.F("ring.successorListSize", cfg.Ring.SuccessorListSize),
		logger.F("ring.stabilizeInterval", cfg.Ring.StabilizeInterval.String()),
		logger.F("ring.fixFingersInterval", cfg.Ring.FixFingersInterval.String()),
		logger.F("ring.checkPredecessorInterval", cfg.Ring.CheckPredecessorInterval.String()),

		// k-bucket
		logger.F("kbucket.refreshInterval", cfg.KBucket.RefreshInterval.String()),

		// storage
		logger.F("storage.path", cfg.Storage.Path),
		logger.F("storage.maxSizeBytes", cfg.Storage.MaxSizeBytes),
		logger.F("storage.pruneInterval", cfg.Storage.PruneInterval.String()),

		// bootstrap
		logger.F("bootstrap.mode", cfg.Bootstrap.Mode),
		logger.F("bootstrap.dnsName", cfg.Bootstrap.DNSName),
		logger.F("bootstrap.srv", cfg.Bootstrap.SRV),
		logger.F("bootstrap.port", cfg.Bootstrap.Port),
		logger.F("bootstrap.peers", cfg.Bootstrap.Peers),
		logger.F("bootstrap.register.enabled", cfg.Bootstrap.Register.Enabled),
		logger.F("bootstrap.register.hostedZoneId", cfg.Bootstrap.Register.HostedZoneID),
		logger.F("bootstrap.register.domainSuffix", cfg.Bootstrap.Register.DomainSuffix),
		logger.F("bootstrap.register.ttl", cfg.Bootstrap.Register.TTL),

		// Node
		logger.F("node.identityKeyFile", cfg.Node.IdentityKeyFile),
		logger.F("node.host", cfg.Node.Host),
		logger.F("node.port", cfg.Node.Port),
		logger.F("node.mode", cfg.Node.Mode),

		// Telemetry
		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
		logger.F("telemetry.tracing.endpoint", cfg.Telemetry.Tracing.Endpoint),
	)
}
