package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig              `mapstructure:"app"`
	Server   ServerConfig           `mapstructure:"server"`
	Venues   map[string]VenueConfig `mapstructure:"venues"`
	KIS      []KISAccountConfig     `mapstructure:"kis_accounts"`
	Hedge    HedgeConfig            `mapstructure:"hedge"`
	Notify   NotifyConfig           `mapstructure:"notify"`
	Database DatabaseConfig         `mapstructure:"database"`
	Logging  LoggingConfig          `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ServerConfig 控制入站信号服务。
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Password 为信号口令，为空时不校验。
	Password string `mapstructure:"password"`
	// Whitelist 为信号来源 IP 白名单，内网地址始终放行。
	Whitelist       []string      `mapstructure:"whitelist"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// VenueConfig 描述单个交易所的接入凭证。
type VenueConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Passphrase string `mapstructure:"passphrase"`
	UseSandbox bool   `mapstructure:"use_sandbox"`
}

// KISAccountConfig 描述证券子账户凭证，按槽位号区分。
type KISAccountConfig struct {
	Slot          int    `mapstructure:"slot"`
	APIKey        string `mapstructure:"api_key"`
	APISecret     string `mapstructure:"api_secret"`
	AccountNumber string `mapstructure:"account_number"`
	AccountCode   string `mapstructure:"account_code"`
}

// HedgeConfig 指定对冲两条腿所在的场所。
type HedgeConfig struct {
	// FuturesVenue 为做空腿所在的合约场所。
	FuturesVenue string `mapstructure:"futures_venue"`
	// SpotVenue 为买入腿所在的本土现货场所，计价货币固定为 SpotQuote。
	SpotVenue string `mapstructure:"spot_venue"`
	SpotQuote string `mapstructure:"spot_quote"`
}

// NotifyConfig 控制异步通知。
type NotifyConfig struct {
	DiscordWebhookURL string        `mapstructure:"discord_webhook_url"`
	Buffer            int           `mapstructure:"buffer"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Server.Addr == "" {
		err = multierr.Append(err, errors.New("server.addr 不能为空"))
	}
	if c.Server.ShutdownTimeout < 0 {
		err = multierr.Append(err, errors.New("server.shutdown_timeout 不能为负"))
	}
	if c.Hedge.FuturesVenue == "" {
		err = multierr.Append(err, errors.New("hedge.futures_venue 不能为空"))
	}
	if c.Hedge.SpotVenue == "" {
		err = multierr.Append(err, errors.New("hedge.spot_venue 不能为空"))
	}
	if c.Hedge.SpotQuote == "" {
		err = multierr.Append(err, errors.New("hedge.spot_quote 不能为空"))
	}
	if c.Notify.Buffer <= 0 {
		err = multierr.Append(err, errors.New("notify.buffer 必须大于0"))
	}
	if c.Notify.Timeout <= 0 {
		err = multierr.Append(err, errors.New("notify.timeout 必须大于0"))
	}
	for i, account := range c.KIS {
		if account.Slot <= 0 {
			err = multierr.Append(err, fmt.Errorf("kis_accounts[%d].slot 必须大于0", i))
		}
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

// Venue 按场所名查找凭证配置，名称大小写不敏感。
func (c *Config) Venue(name string) (VenueConfig, bool) {
	for key, vc := range c.Venues {
		if strings.EqualFold(key, name) {
			return vc, true
		}
	}
	return VenueConfig{}, false
}

// KISAccount 按槽位号查找证券子账户。
func (c *Config) KISAccount(slot int) (KISAccountConfig, bool) {
	for _, account := range c.KIS {
		if account.Slot == slot {
			return account, true
		}
	}
	return KISAccountConfig{}, false
}
