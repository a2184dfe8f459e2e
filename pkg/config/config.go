package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Weights is a four-sleeve allocation as written in YAML.
type Weights struct {
	RiskA float64 `yaml:"risk_a" validate:"gte=0,lte=1"`
	RiskB float64 `yaml:"risk_b" validate:"gte=0,lte=1"`
	RiskC float64 `yaml:"risk_c" validate:"gte=0,lte=1"`
	Cash  float64 `yaml:"cash" validate:"gte=0,lte=1"`
}

func (w Weights) Sum() float64 { return w.RiskA + w.RiskB + w.RiskC + w.Cash }

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stderr"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Data struct {
		Source  string `yaml:"source" default:"csv" validate:"oneof=csv clickhouse"`
		CSVPath string `yaml:"csv_path" default:"data/weekly.csv"`
		Table   string `yaml:"table" default:"mhi_weekly"`
		Start   string `yaml:"start" default:"2005-01-01" validate:"datetime=2006-01-02"`
	} `yaml:"data"`

	Indicators struct {
		ZWindow       int  `yaml:"z_window" default:"260" validate:"gte=2"`
		BreadthWindow int  `yaml:"breadth_window" default:"40" validate:"gte=2"`
		NoCredit      bool `yaml:"no_credit"`
	} `yaml:"indicators"`

	Policy struct {
		LowThreshold  float64 `yaml:"low_threshold" default:"-1.75"`
		HighThreshold float64 `yaml:"high_threshold" default:"1.75"`
		CashMax       float64 `yaml:"cash_max" default:"0.35" validate:"gte=0,lte=1"`
		Base          Weights `yaml:"base" default:"{\"RiskA\":0.35,\"RiskB\":0.45,\"RiskC\":0.10,\"Cash\":0.10}"`
		Low           Weights `yaml:"low" default:"{\"RiskA\":0.55,\"RiskB\":0.25,\"RiskC\":0.05,\"Cash\":0.15}"`
		High          Weights `yaml:"high" default:"{\"RiskA\":0.15,\"RiskB\":0.60,\"RiskC\":0.05,\"Cash\":0.20}"`
		Legacy        bool    `yaml:"legacy"`
	} `yaml:"policy"`

	Tilt struct {
		Enabled   bool    `yaml:"enabled" default:"true"`
		Lookback  int     `yaml:"lookback" default:"4" validate:"gte=1"`
		Threshold float64 `yaml:"threshold" default:"0.20" validate:"gt=0"`
		Step      float64 `yaml:"step" default:"0.10" validate:"gte=0,lte=1"`
	} `yaml:"tilt"`

	Simulation struct {
		Cadence       int     `yaml:"cadence" default:"4" validate:"gte=1"`
		Warmup        int     `yaml:"warmup" default:"12" validate:"gte=0"`
		ConfirmWindow int     `yaml:"confirm_window" default:"3" validate:"gte=1"`
		SkipMissing   bool    `yaml:"skip_missing"`
		ImpactWindow  int     `yaml:"impact_window" default:"12" validate:"gte=1"`
		MinChange     float64 `yaml:"min_change" default:"0.08" validate:"gte=0,lt=1"`
	} `yaml:"simulation"`

	Costs struct {
		Preset string   `yaml:"preset" default:"standard" validate:"omitempty,oneof=standard conservative zero"`
		Rates  *Weights `yaml:"rates" validate:"omitempty"`
	} `yaml:"costs"`

	Sweep struct {
		Workers       int     `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
		Top           int     `yaml:"top" default:"10" validate:"gte=1"`
		MaxCells      int     `yaml:"max_cells" default:"400" validate:"gte=1"`
		RatePerMinute float64 `yaml:"rate_per_minute" default:"6" validate:"gt=0"`
		Burst         int     `yaml:"burst" default:"2" validate:"gte=1"`
	} `yaml:"sweep"`

	Schedule struct {
		Enabled  bool          `yaml:"enabled"`
		Spec     string        `yaml:"spec" default:"0 0 18 * * FRI"`
		Timeout  time.Duration `yaml:"timeout" default:"2m"`
		Holdings Weights       `yaml:"holdings" default:"{\"RiskA\":0.35,\"RiskB\":0.45,\"RiskC\":0.10,\"Cash\":0.10}"`
	} `yaml:"schedule"`

	ClickHouse struct {
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"mhi"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		UseHTTP     bool          `yaml:"use_http"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout time.Duration `yaml:"read_timeout" default:"30s"`
		MaxOpen     int           `yaml:"max_open_conns" default:"4" validate:"gte=1"`
		MaxIdle     int           `yaml:"max_idle_conns" default:"2" validate:"gte=0"`
		InitSchema  bool          `yaml:"init_schema"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PoolSize int           `yaml:"pool_size" default:"10" validate:"gte=1"`
		Prefix   string        `yaml:"prefix" default:"mhi"`
		TTL      time.Duration `yaml:"ttl" default:"24h"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		BatchSize    int           `yaml:"batch_size" default:"50" validate:"gte=1"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
		Topics       struct {
			Rebalances string `yaml:"rebalances" default:"mhi.rebalances"`
			Decisions  string `yaml:"decisions" default:"mhi.decisions"`
			Sweeps     string `yaml:"sweeps" default:"mhi.sweeps"`
		} `yaml:"topics"`
	} `yaml:"kafka"`

	Macro struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		BreakerFailures uint32        `yaml:"breaker_failures" default:"3"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout" default:"1m"`
	} `yaml:"macro"`
}

var validate = validator.New()

// Default returns a configuration holding only the built-in defaults.
func Default() *Config {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return c
}

// Load applies defaults, then the YAML file on top, then validates.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), then the YAML file (if path is set),
// then applies MHI_* overrides and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"MHI_ENV":                 &c.Environment,
		"MHI_LOG_LEVEL":           &c.Log.Level,
		"MHI_LOG_FORMAT":          &c.Log.Format,
		"MHI_DATA_SOURCE":         &c.Data.Source,
		"MHI_DATA_CSV_PATH":       &c.Data.CSVPath,
		"MHI_DATA_START":          &c.Data.Start,
		"MHI_COST_PRESET":         &c.Costs.Preset,
		"MHI_CLICKHOUSE_HOST":     &c.ClickHouse.Host,
		"MHI_CLICKHOUSE_USER":     &c.ClickHouse.User,
		"MHI_CLICKHOUSE_PASSWORD": &c.ClickHouse.Password,
		"MHI_REDIS_ADDR":          &c.Redis.Addr,
		"MHI_REDIS_PASSWORD":      &c.Redis.Password,
	}
	for k, dst := range str {
		if v, ok := lookup(k); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("MHI_SERVER_PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MHI_SERVER_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v, ok := lookup("MHI_KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v, ok := lookup("MHI_REDIS_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MHI_REDIS_ENABLED: %w", err)
		}
		c.Redis.Enabled = b
	}
	return nil
}

// Validate runs tag validation and the cross-field checks tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	p := c.Policy
	if p.LowThreshold >= p.HighThreshold {
		return fmt.Errorf("policy.low_threshold %v must be below policy.high_threshold %v", p.LowThreshold, p.HighThreshold)
	}
	for name, w := range map[string]Weights{"base": p.Base, "low": p.Low, "high": p.High, "schedule.holdings": c.Schedule.Holdings} {
		if math.Abs(w.Sum()-1) > 1e-9 {
			return fmt.Errorf("%s weights sum to %v, want 1", name, w.Sum())
		}
	}
	if c.Costs.Preset == "" && c.Costs.Rates == nil {
		return fmt.Errorf("costs: set a preset or explicit rates")
	}
	if c.Data.Source == "csv" && c.Data.CSVPath == "" {
		return fmt.Errorf("data.csv_path is required for the csv source")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

// StartDate parses data.start.
func (c *Config) StartDate() time.Time {
	t, err := time.Parse(time.DateOnly, c.Data.Start)
	if err != nil {
		return time.Time{}
	}
	return t
}
