package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"unicode"

	"github.com/spf13/viper"
)

const badgerDb = "badger"

type Config struct {
	Datadir  string `mapstructure:"DATADIR" envDefault:"escrowd" envInfo:"Data directory for escrowd state"`
	DbType   string `mapstructure:"DB_TYPE" envDefault:"badger" envInfo:"Database backend: badger"`
	HTTPPort uint32 `mapstructure:"HTTP_PORT" envDefault:"7100" envInfo:"HTTP server port"`
	LogLevel uint32 `mapstructure:"LOG_LEVEL" envDefault:"4" envInfo:"Log verbosity (higher = more verbose)"`

	LedgerURL    string `mapstructure:"LEDGER_URL" envDefault:"" envInfo:"Ledger gateway base URL"`
	AnchorDomain string `mapstructure:"ANCHOR_DOMAIN" envDefault:"" envInfo:"Default anchor authority domain"`
	AssetCode    string `mapstructure:"ASSET_CODE" envDefault:"USDC" envInfo:"Settlement asset code"`
	AssetIssuer  string `mapstructure:"ASSET_ISSUER" envDefault:"" envInfo:"Settlement asset issuer account"`

	PollInterval uint32 `mapstructure:"POLL_INTERVAL" envDefault:"5" envInfo:"Anchor session poll interval in seconds"`
	TxTimeout    uint32 `mapstructure:"TX_TIMEOUT" envDefault:"30" envInfo:"Ledger submission time-to-live in seconds"`
	WebhookURL   string `mapstructure:"WEBHOOK_URL" envDefault:"" envInfo:"Notification webhook endpoint (optional)"`

	WalletMnemonic   string `mapstructure:"WALLET_MNEMONIC" envDefault:"" envInfo:"BIP39 mnemonic for the signing wallet"`
	WalletPrivateKey string `mapstructure:"WALLET_PRIVATE_KEY" envDefault:"" envInfo:"Hex private key (alternative to mnemonic)"`
}

func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("ESCROWD")
	v.AutomaticEnv()

	if err := setDefaultConfig(v); err != nil {
		return nil, fmt.Errorf("error setting default config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %v", err)
	}

	if err := config.initDb(); err != nil {
		return nil, fmt.Errorf("error initializing data directory: %w", err)
	}

	if config.WalletMnemonic == "" && config.WalletPrivateKey == "" {
		return nil, fmt.Errorf("either WALLET_MNEMONIC or WALLET_PRIVATE_KEY must be set")
	}
	if config.WalletMnemonic != "" && config.WalletPrivateKey != "" {
		return nil, fmt.Errorf("cannot set both WALLET_MNEMONIC and WALLET_PRIVATE_KEY")
	}

	return &config, nil
}

func (c *Config) initDb() error {
	supportedDbType := map[string]struct{}{
		badgerDb: {},
	}

	if _, ok := supportedDbType[c.DbType]; !ok {
		return fmt.Errorf("unsupported db type: %s", c.DbType)
	}

	if c.Datadir == "escrowd" {
		c.Datadir = appDatadir("escrowd", false)
	}
	return makeDirectoryIfNotExists(c.Datadir)
}

func setDefaultConfig(v *viper.Viper) error {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Tag.Get("mapstructure")
		def := f.Tag.Get("envDefault")
		if def != "" {
			v.SetDefault(key, def)
		}
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("error binding env variable for key %s: %w", key, err)
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// appDatadir returns an operating system specific directory to be used for
// storing application data.
func appDatadir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := string(unicode.ToUpper(rune(appName[0]))) + appName[1:]
	appNameLower := string(unicode.ToLower(rune(appName[0]))) + appName[1:]

	var homeDir string
	usr, err := user.Current()
	if err == nil {
		homeDir = usr.HomeDir
	}
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if roaming || appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData != "" {
			return filepath.Join(appData, appNameUpper)
		}
	case "darwin":
		if homeDir != "" {
			return filepath.Join(homeDir, "Library", "Application Support", appNameUpper)
		}
	default:
		if homeDir != "" {
			return filepath.Join(homeDir, "."+appNameLower)
		}
	}

	return "."
}
