package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acadfin/treasury/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Configuration struct {
	Logging  LoggingConfig  `validate:"required"`
	Treasury TreasuryConfig `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

// TreasuryConfig holds the engine settings that the host used to read from a
// global settings singleton. It is built once and injected into the services.
type TreasuryConfig struct {
	// TuitionProductCategory is the product category treated as tuition
	// when rules decide whether academic-act blocking applies.
	TuitionProductCategory string

	// DefaultCurrency is the ISO currency code stamped on debit notes.
	DefaultCurrency string

	// RuleWorkers bounds the batch dispatch pool. The default of 1
	// preserves (kind, order) sequencing across rules; raise it only for
	// rule sets proven independent.
	RuleWorkers int

	// MatchCacheTTL bounds how long a tariff match result may be served
	// from cache before being recomputed.
	MatchCacheTTL time.Duration

	// MinimumAmountForPaymentCode is the default threshold below which no
	// payment reference is generated; rules may override it.
	MinimumAmountForPaymentCode decimal.Decimal
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/treasury")

	v.SetEnvPrefix("TREASURY")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("treasury.defaultcurrency", "EUR")
	v.SetDefault("treasury.ruleworkers", 1)
	v.SetDefault("treasury.matchcachettl", "5m")
	v.SetDefault("treasury.tuitionproductcategory", "tuition")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Treasury.RuleWorkers < 1 {
		return fmt.Errorf("treasury.ruleworkers must be at least 1")
	}
	if types.IsNegative(c.Treasury.MinimumAmountForPaymentCode) {
		return fmt.Errorf("treasury.minimumamountforpaymentcode must not be negative")
	}
	return nil
}

// GetDefaultConfig returns a configuration suitable for local development
// and tests.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Logging: LoggingConfig{Level: types.LogLevelInfo},
		Treasury: TreasuryConfig{
			TuitionProductCategory:      "tuition",
			DefaultCurrency:             "EUR",
			RuleWorkers:                 1,
			MatchCacheTTL:               5 * time.Minute,
			MinimumAmountForPaymentCode: decimal.Zero,
		},
	}
}
