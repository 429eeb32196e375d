package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"steemauth/internal/chain"
	"steemauth/internal/crypto"
	"steemauth/internal/services/encryption"
	"steemauth/internal/steemlogin"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home           string `mapstructure:"home" validate:"required"`           // data directory, e.g. $HOME/.steemauth
	AppName        string `mapstructure:"app" validate:"required"`            // storage key prefix and SteemLogin client id
	StorageBackend string `mapstructure:"storage" validate:"oneof=file badger"`

	RPCURL        string `mapstructure:"rpc" validate:"required,url"`
	ChainID       string `mapstructure:"chain-id" validate:"required,hexadecimal,len=64"`
	AddressPrefix string `mapstructure:"address-prefix" validate:"required,alpha"`

	SteemLoginURL string `mapstructure:"steemlogin-url" validate:"required,url"`
	SteemLoginAPI string `mapstructure:"steemlogin-api" validate:"required,url"`
	CallbackURL   string `mapstructure:"callback-url" validate:"omitempty,url"`

	Listen       string        `mapstructure:"listen" validate:"required,hostname_port"`
	SwitchPolicy string        `mapstructure:"switch-policy" validate:"oneof=trust-cached revalidate"`
	LogLevel     string        `mapstructure:"log-level" validate:"oneof=trace debug info warn error"`
	Iterations   int           `mapstructure:"iterations" validate:"min=1"`
	CacheSize    int64         `mapstructure:"cache-size" validate:"min=0"` // 0 disables the profile cache
	CacheTTL     time.Duration `mapstructure:"cache-ttl" validate:"min=0"`

	HTTP *http.Client `mapstructure:"-" validate:"-"` // optional; defaults to a client with a timeout
}

// DefaultConfig returns the configuration for the Steem main network with
// data kept under home.
func DefaultConfig(home string) Config {
	return Config{
		Home:           home,
		AppName:        "steemauth",
		StorageBackend: BackendFile,
		RPCURL:         chain.DefaultURL,
		ChainID:        chain.SteemChainID,
		AddressPrefix:  crypto.DefaultAddressPrefix,
		SteemLoginURL:  steemlogin.DefaultBaseURL,
		SteemLoginAPI:  steemlogin.DefaultAPIURL,
		Listen:         "127.0.0.1:8080",
		SwitchPolicy:   "trust-cached",
		LogLevel:       "info",
		Iterations:     encryption.DefaultIterations,
		CacheSize:      1000,
		CacheTTL:       30 * time.Second,
	}
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
