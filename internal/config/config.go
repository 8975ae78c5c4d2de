/**
 * @description
 * This package handles the configuration management for the issuer service. It
 * uses the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 * - internal/domain: Amount and fee parsing for token settings.
 */

package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/tari-project/stable-coin/internal/domain"
)

// Config holds all the configuration variables for the issuer service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort         string `mapstructure:"SERVER_PORT"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	RabbitMQURL        string `mapstructure:"RABBITMQ_URL"`
	AuditEventExchange string `mapstructure:"AUDIT_EVENT_EXCHANGE"`
	JWTSecret          string `mapstructure:"JWT_SECRET"`

	TokenSymbol        string `mapstructure:"TOKEN_SYMBOL"`
	ProviderName       string `mapstructure:"PROVIDER_NAME"`
	InitialSupply      string `mapstructure:"INITIAL_SUPPLY"`
	EnableWrappedToken bool   `mapstructure:"ENABLE_WRAPPED_TOKEN"`
	ViewKey            string `mapstructure:"VIEW_KEY"`

	DefaultExchangeLimit      string `mapstructure:"DEFAULT_EXCHANGE_LIMIT"`
	TransferFee               string `mapstructure:"TRANSFER_FEE"`
	TransferFeePercent        uint8  `mapstructure:"TRANSFER_FEE_PERCENT"`
	WrappedExchangeFeePercent uint8  `mapstructure:"WRAPPED_EXCHANGE_FEE_PERCENT"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AUDIT_EVENT_EXCHANGE", "issuer.audit_events")
	viper.SetDefault("TOKEN_SYMBOL", "USDT")
	viper.SetDefault("PROVIDER_NAME", "Stable Coin Issuer")
	viper.SetDefault("INITIAL_SUPPLY", "1000000")
	viper.SetDefault("ENABLE_WRAPPED_TOKEN", true)
	viper.SetDefault("DEFAULT_EXCHANGE_LIMIT", "1")
	viper.SetDefault("TRANSFER_FEE", "0.001")
	viper.SetDefault("TRANSFER_FEE_PERCENT", 0)
	viper.SetDefault("WRAPPED_EXCHANGE_FEE_PERCENT", 1)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("AUDIT_EVENT_EXCHANGE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("TOKEN_SYMBOL")
	_ = viper.BindEnv("PROVIDER_NAME")
	_ = viper.BindEnv("INITIAL_SUPPLY")
	_ = viper.BindEnv("ENABLE_WRAPPED_TOKEN")
	_ = viper.BindEnv("VIEW_KEY")
	_ = viper.BindEnv("DEFAULT_EXCHANGE_LIMIT")
	_ = viper.BindEnv("TRANSFER_FEE")
	_ = viper.BindEnv("TRANSFER_FEE_PERCENT")
	_ = viper.BindEnv("WRAPPED_EXCHANGE_FEE_PERCENT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.TokenSymbol = strings.TrimSpace(config.TokenSymbol)
	config.ProviderName = strings.TrimSpace(config.ProviderName)
	config.ViewKey = strings.TrimSpace(config.ViewKey)

	return
}

// TokenSettings derives the token fee and limit settings from the raw
// configuration strings. A set TRANSFER_FEE_PERCENT takes precedence over the
// fixed TRANSFER_FEE.
func (c Config) TokenSettings() (domain.StableCoinConfig, error) {
	settings := domain.DefaultStableCoinConfig()

	if c.TransferFeePercent > 0 {
		fee, err := domain.PercentageFee(c.TransferFeePercent)
		if err != nil {
			return settings, fmt.Errorf("invalid TRANSFER_FEE_PERCENT: %w", err)
		}
		settings.TransferFee = fee
	} else if strings.TrimSpace(c.TransferFee) != "" {
		amount, err := domain.ParseAmount(c.TransferFee)
		if err != nil {
			return settings, fmt.Errorf("invalid TRANSFER_FEE: %w", err)
		}
		if amount.IsNegative() {
			return settings, fmt.Errorf("invalid TRANSFER_FEE: %w", domain.ErrAmountNegative)
		}
		settings.TransferFee = domain.FixedFee(amount)
	}

	exchangeFee, err := domain.PercentageFee(c.WrappedExchangeFeePercent)
	if err != nil {
		return settings, fmt.Errorf("invalid WRAPPED_EXCHANGE_FEE_PERCENT: %w", err)
	}
	settings.WrappedExchangeFee = exchangeFee

	if strings.TrimSpace(c.DefaultExchangeLimit) != "" {
		limit, err := domain.ParseAmount(c.DefaultExchangeLimit)
		if err != nil {
			return settings, fmt.Errorf("invalid DEFAULT_EXCHANGE_LIMIT: %w", err)
		}
		if limit.IsNegative() {
			return settings, fmt.Errorf("invalid DEFAULT_EXCHANGE_LIMIT: %w", domain.ErrAmountNegative)
		}
		settings.DefaultExchangeLimit = limit
	}

	return settings, nil
}

// InitialSupplyAmount parses the configured initial supply.
func (c Config) InitialSupplyAmount() (domain.Amount, error) {
	supply, err := domain.ParseAmount(c.InitialSupply)
	if err != nil {
		return 0, fmt.Errorf("invalid INITIAL_SUPPLY: %w", err)
	}
	if !supply.IsPositive() {
		return 0, fmt.Errorf("invalid INITIAL_SUPPLY: %w", domain.ErrAmountNotPositive)
	}
	return supply, nil
}
