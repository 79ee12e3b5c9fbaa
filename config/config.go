package config

import (
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	logFilename    = "hiveonboard.log"
	errLogFilename = "hiveonboard_err.log"

	defaultHTTPListen     = "0.0.0.0:8080"
	defaultLogDir         = "logs"
	defaultLogLevel       = "info"
	defaultMigrationsPath = "database/migrations"
	defaultHiveNode       = "https://api.hive.blog"
	defaultSolanaRPC      = "https://api.mainnet-beta.solana.com"
	defaultRCBeacon       = "https://beacon.peakd.com/api/rc"
)

// placeholderValues are rejected wherever a real secret or API key is
// required, so a copy-pasted sample environment cannot reach production.
var placeholderValues = map[string]struct{}{
	"":                {},
	"changeme":        {},
	"yourapikeytoken": {},
	"your-api-key":    {},
	"xxx":             {},
}

var activeConfig *Config

// ActiveConfig returns the active configuration struct.
func ActiveConfig() *Config {
	return activeConfig
}

// Config defines the configuration options for the hiveonboard service.
type Config struct {
	HTTPListen     string `long:"listen" env:"HTTP_LISTEN" description:"HTTP address to listen on (default: 0.0.0.0:8080)"`
	DBConnection   string `long:"db" env:"DB_CONNECTION_STRING" description:"MySQL connection string (user:password@tcp(host:port)/dbname)"`
	MigrationsPath string `long:"migrations-path" description:"Path to the database migration files"`
	Migrate        bool   `long:"migrate" description:"Run database migrations and exit"`

	EncryptionKey string `long:"encryption-key" env:"CRYPTO_ENCRYPTION_KEY" description:"64-hex-char AES-256 key for private keys at rest"`
	MasterSeed    string `long:"master-seed" env:"CRYPTO_MASTER_SEED" description:"64-hex-char master seed for HD address derivation"`

	HiveCreatorAccount string `long:"creator-account" env:"HIVE_CREATOR_ACCOUNT" description:"Hive account that pays for or claims account creations"`
	HiveCreatorWIF     string `long:"creator-active-key" env:"HIVE_CREATOR_ACTIVE_KEY" description:"Active key (WIF) of the creator account"`
	HiveNodeURL        string `long:"hive-node" env:"HIVE_NODE_URL" description:"Hive API node URL"`
	RCBeaconURL        string `long:"rc-beacon" env:"RC_BEACON_URL" description:"RC cost beacon URL"`

	EtherscanAPIKey    string `long:"etherscan-key" env:"ETHERSCAN_API_KEY" description:"Etherscan API key"`
	BscScanAPIKey      string `long:"bscscan-key" env:"BSCSCAN_API_KEY" description:"BscScan API key"`
	PolygonScanAPIKey  string `long:"polygonscan-key" env:"POLYGONSCAN_API_KEY" description:"PolygonScan API key"`
	BlockCypherAPIKey  string `long:"blockcypher-key" env:"BLOCKCYPHER_API_KEY" description:"BlockCypher API key (optional, raises rate limits)"`
	SolanaRPCURL       string `long:"solana-rpc" env:"SOLANA_RPC_URL" description:"Solana JSON-RPC URL"`
	AllowedCORSOrigins string `long:"cors-origins" env:"ALLOWED_CORS_ORIGINS" description:"Comma-separated list of allowed CORS origins"`

	LogDir   string `long:"logdir" env:"LOG_DIR" description:"Directory to write log files in"`
	LogLevel string `long:"loglevel" short:"d" env:"LOG_LEVEL" description:"Logging level {trace, debug, info, warn, error, critical}"`
}

// Parse parses the CLI arguments and environment and returns a config struct.
func Parse() (*Config, error) {
	cfg := &Config{
		HTTPListen:     defaultHTTPListen,
		MigrationsPath: defaultMigrationsPath,
		HiveNodeURL:    defaultHiveNode,
		SolanaRPCURL:   defaultSolanaRPC,
		RCBeaconURL:    defaultRCBeacon,
		LogDir:         defaultLogDir,
		LogLevel:       defaultLogLevel,
	}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	err = cfg.validate()
	if err != nil {
		return nil, err
	}

	activeConfig = cfg
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.DBConnection == "" {
		return errors.New("--db or DB_CONNECTION_STRING is required")
	}

	err := validateHexSecret("CRYPTO_ENCRYPTION_KEY", cfg.EncryptionKey)
	if err != nil {
		return err
	}
	// The master seed may also be a BIP39 mnemonic; the vault validates the
	// exact format at startup.
	if isPlaceholder(cfg.MasterSeed) {
		return errors.New("CRYPTO_MASTER_SEED is required and must not be a placeholder")
	}

	if cfg.HiveCreatorAccount == "" {
		return errors.New("HIVE_CREATOR_ACCOUNT is required")
	}
	if isPlaceholder(cfg.HiveCreatorWIF) {
		return errors.New("HIVE_CREATOR_ACTIVE_KEY is required and must not be a placeholder")
	}

	for name, key := range map[string]string{
		"ETHERSCAN_API_KEY":   cfg.EtherscanAPIKey,
		"BSCSCAN_API_KEY":     cfg.BscScanAPIKey,
		"POLYGONSCAN_API_KEY": cfg.PolygonScanAPIKey,
	} {
		if isPlaceholder(key) {
			return errors.Errorf("%s is required and must not be a placeholder", name)
		}
	}

	return nil
}

// validateHexSecret requires a 64-character hex string that is not a known
// sample value.
func validateHexSecret(name, value string) error {
	if isPlaceholder(value) {
		return errors.Errorf("%s is required and must not be a placeholder", name)
	}
	if len(value) != 64 {
		return errors.Errorf("%s must be exactly 64 hex characters", name)
	}
	_, err := hex.DecodeString(value)
	if err != nil {
		return errors.Errorf("%s is not valid hex", name)
	}
	return nil
}

func isPlaceholder(value string) bool {
	_, ok := placeholderValues[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// CORSOrigins returns the configured allowed origins as a slice.
func (cfg *Config) CORSOrigins() []string {
	if cfg.AllowedCORSOrigins == "" {
		return nil
	}
	origins := strings.Split(cfg.AllowedCORSOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	return origins
}

// LogFile returns the path of the main log file.
func (cfg *Config) LogFile() string {
	return filepath.Join(cfg.LogDir, logFilename)
}

// ErrLogFile returns the path of the error log file.
func (cfg *Config) ErrLogFile() string {
	return filepath.Join(cfg.LogDir, errLogFilename)
}
