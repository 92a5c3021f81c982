package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"bankledger/internal/model"
	"bankledger/pkg/money"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lock     LockConfig     `mapstructure:"lock"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port     int   `mapstructure:"port"`
	WorkerID int64 `mapstructure:"worker_id"` // 雪花算法节点号 0-1023
}

// DatabaseConfig 支持 mysql / postgres / sqlite
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"` // sqlite 时为文件路径或 DSN
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"` // silent / error / warn / info
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LockConfig 账户锁；driver=redis 时使用分布式锁，local 时为进程内锁（单实例部署）
type LockConfig struct {
	Driver        string        `mapstructure:"driver"`
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

// BrokerConfig 账本事件投递目标：kafka / rabbitmq / mongo
type BrokerConfig struct {
	Driver   string         `mapstructure:"driver"`
	Topic    string         `mapstructure:"topic"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// LedgerConfig 账户规则参数，金额一律用字符串配置，避免 YAML 浮点精度问题
type LedgerConfig struct {
	Savings               SavingsConfig `mapstructure:"savings"`
	Current               CurrentConfig `mapstructure:"current"`
	AccountNumberAttempts int           `mapstructure:"account_number_attempts"`
	TransactionIDAttempts int           `mapstructure:"transaction_id_attempts"`
	ConflictRetries       int           `mapstructure:"conflict_retries"`
}

type SavingsConfig struct {
	MinimumBalance       string `mapstructure:"minimum_balance"`
	DailyWithdrawalLimit string `mapstructure:"daily_withdrawal_limit"`
	InterestRate         string `mapstructure:"interest_rate"`
}

type CurrentConfig struct {
	MinimumBalance string `mapstructure:"minimum_balance"`
	OverdraftLimit string `mapstructure:"overdraft_limit"`
	TransactionFee string `mapstructure:"transaction_fee"`
}

type JobsConfig struct {
	Outbox    OutboxJobConfig `mapstructure:"outbox"`
	Interest  PeriodicJob     `mapstructure:"interest"`
	Reconcile PeriodicJob     `mapstructure:"reconcile"`
}

type OutboxJobConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxRetryCount   int           `mapstructure:"max_retry_count"`
	RequeueInterval time.Duration `mapstructure:"requeue_interval"` // 失败消息重新入队的间隔，0 表示不重新入队
}

type PeriodicJob struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_id", 1)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("lock.driver", "redis")
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.retry_interval", 50*time.Millisecond)
	v.SetDefault("lock.max_retries", 100)

	v.SetDefault("broker.driver", "kafka")
	v.SetDefault("broker.topic", "ledger-events")
	v.SetDefault("broker.rabbitmq.exchange", "ledger")
	v.SetDefault("broker.mongo.database", "ledger")
	v.SetDefault("broker.mongo.collection", "ledger_events")

	v.SetDefault("ledger.savings.minimum_balance", "500.00")
	v.SetDefault("ledger.savings.daily_withdrawal_limit", "50000.00")
	v.SetDefault("ledger.savings.interest_rate", "0.04")
	v.SetDefault("ledger.current.minimum_balance", "1000.00")
	v.SetDefault("ledger.current.overdraft_limit", "10000.00")
	v.SetDefault("ledger.current.transaction_fee", "10.00")
	v.SetDefault("ledger.account_number_attempts", 5)
	v.SetDefault("ledger.transaction_id_attempts", 5)
	v.SetDefault("ledger.conflict_retries", 3)

	v.SetDefault("jobs.outbox.interval", 100*time.Millisecond)
	v.SetDefault("jobs.outbox.batch_size", 100)
	v.SetDefault("jobs.outbox.max_retry_count", 5)
	v.SetDefault("jobs.outbox.requeue_interval", 10*time.Minute)
	v.SetDefault("jobs.interest.enabled", true)
	v.SetDefault("jobs.interest.interval", time.Hour)
	v.SetDefault("jobs.interest.batch_size", 200)
	v.SetDefault("jobs.reconcile.enabled", true)
	v.SetDefault("jobs.reconcile.interval", time.Hour)
	v.SetDefault("jobs.reconcile.batch_size", 200)
}

// Load 读取配置文件；configPath 为空时只使用默认值和环境变量
// 环境变量前缀 LEDGER_，例如 LEDGER_DATABASE_HOST
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if _, err := cfg.Ledger.Policies(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig 加载配置文件，失败直接退出
func LoadConfig(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	return cfg
}

// Policies 将配置转换为账户规则
func (c LedgerConfig) Policies() (model.Policies, error) {
	var (
		p   model.Policies
		err error
	)

	parse := func(name, value string) money.Money {
		if err != nil {
			return money.Money{}
		}
		var m money.Money
		m, err = money.Parse(value)
		if err == nil && m.IsNegative() {
			err = fmt.Errorf("%s 不能为负数: %s", name, value)
		}
		if err != nil {
			err = fmt.Errorf("ledger.%s 配置错误: %w", name, err)
		}
		return m
	}

	p.Savings.Minimum = parse("savings.minimum_balance", c.Savings.MinimumBalance)
	p.Savings.DailyWithdrawalLimit = parse("savings.daily_withdrawal_limit", c.Savings.DailyWithdrawalLimit)
	p.Current.Minimum = parse("current.minimum_balance", c.Current.MinimumBalance)
	p.Current.OverdraftLimit = parse("current.overdraft_limit", c.Current.OverdraftLimit)
	p.Current.TransactionFee = parse("current.transaction_fee", c.Current.TransactionFee)
	if err != nil {
		return model.Policies{}, err
	}

	rate, rerr := decimal.NewFromString(c.Savings.InterestRate)
	if rerr != nil || rate.IsNegative() {
		return model.Policies{}, fmt.Errorf("ledger.savings.interest_rate 配置错误: %q", c.Savings.InterestRate)
	}
	p.Savings.InterestRate = rate
	return p, nil
}

// Default 返回只包含默认值的配置
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}
