package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/Spok95/panel-bom/internal/domain/bom"
	"github.com/Spok95/panel-bom/internal/domain/cable"
)

type Config struct {
	App struct {
		Env      string
		LogLevel string `mapstructure:"log_level"`
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
		Timeout     int
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Cable cable.Constants `mapstructure:"cable"`

	BOM struct {
		Strict         bool
		DefaultLengthM float64              `mapstructure:"default_length_m"`
		DefaultVoltage float64              `mapstructure:"default_voltage"`
		Enclosures     []Enclosure          `mapstructure:"enclosures"`
		Usages         map[string]bom.Usage `mapstructure:"usages"`
	} `mapstructure:"bom"`

	Prices struct {
		Date        string
		MPCB        string            `mapstructure:"mpcb"`
		Contactor   string            `mapstructure:"contactor"`
		SignalCable string            `mapstructure:"signal_cable"`
		Accessories map[string]string `mapstructure:"accessories"`
		PowerCables []PowerCable      `mapstructure:"power_cables"`
	} `mapstructure:"prices"`

	Refresh struct {
		URL      string
		Timeout  time.Duration
		Retries  uint64
		Backoff  time.Duration
		Supplier string
		Currency string
	} `mapstructure:"refresh"`
}

type Enclosure struct {
	Label  string
	Width  float64
	Height float64
	Depth  float64
	Price  string
}

type PowerCable struct {
	SizeMM float64 `mapstructure:"size_mm"`
	Price  string
}

func setDefaults(v *viper.Viper) {
	k := cable.DefaultConstants()

	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.log_level", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.timeout", 30)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("cable.safety_factor", k.SafetyFactor)
	v.SetDefault("cable.power_factor", k.PowerFactor)
	v.SetDefault("cable.efficiency", k.Efficiency)
	v.SetDefault("bom.strict", false)
	v.SetDefault("bom.default_length_m", 50.0)
	v.SetDefault("bom.default_voltage", 380.0)
	v.SetDefault("refresh.url", "")
	v.SetDefault("refresh.supplier", "")
	v.SetDefault("refresh.timeout", 2*time.Minute)
	v.SetDefault("refresh.retries", 3)
	v.SetDefault("refresh.backoff", time.Second)
	v.SetDefault("refresh.currency", "EUR")
}

// Load читает YAML, затем переменные окружения APP_* (APP_POSTGRES_DSN и т.п.).
// Файл .env, если он есть рядом, подгружается до чтения окружения.
func Load(path string) (Config, error) {
	_ = gotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if err := c.Cable.Validate(); err != nil {
		return c, err
	}
	if c.Refresh.URL != "" && strings.TrimSpace(c.Refresh.Supplier) == "" {
		return c, fmt.Errorf("refresh.supplier is required when refresh.url is set")
	}
	return c, nil
}

// Usages: профили по умолчанию, дополненные и переопределённые из bom.usages.
func (c Config) Usages() (bom.Usages, error) {
	out := bom.DefaultUsages()
	for name, u := range c.BOM.Usages {
		name = strings.ToLower(name)
		if u.Name == "" {
			u.Name = name
		}
		if base, ok := out[name]; ok && u.Accessories == nil {
			u.Accessories = base.Accessories
		}
		out[name] = u
	}
	return out, out.Validate()
}

// BOMOptions накладывает прайс из конфига на встроенный.
func (c Config) BOMOptions() (bom.Options, error) {
	o := bom.DefaultOptions()
	o.Strict = c.BOM.Strict

	set := func(dst *decimal.Decimal, raw, name string) error {
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("prices.%s: %w", name, err)
		}
		*dst = d
		return nil
	}

	if c.Prices.Date != "" {
		d, err := time.Parse("2006-01-02", c.Prices.Date)
		if err != nil {
			return o, fmt.Errorf("prices.date: %w", err)
		}
		o.PriceDate = d
	}
	if err := set(&o.MPCBPrice, c.Prices.MPCB, "mpcb"); err != nil {
		return o, err
	}
	if err := set(&o.ContactorPrice, c.Prices.Contactor, "contactor"); err != nil {
		return o, err
	}
	if err := set(&o.SignalCable.UnitPrice, c.Prices.SignalCable, "signal_cable"); err != nil {
		return o, err
	}
	for key, raw := range c.Prices.Accessories {
		found := false
		for i := range o.Accessories {
			if o.Accessories[i].Key == key {
				if err := set(&o.Accessories[i].UnitPrice, raw, "accessories."+key); err != nil {
					return o, err
				}
				found = true
			}
		}
		if !found {
			return o, fmt.Errorf("prices.accessories: unknown accessory %q", key)
		}
	}
	for _, pc := range c.Prices.PowerCables {
		p, err := decimal.NewFromString(pc.Price)
		if err != nil {
			return o, fmt.Errorf("prices.power_cables[%v]: %w", pc.SizeMM, err)
		}
		replaced := false
		for i := range o.PowerCables {
			if o.PowerCables[i].SizeMM == pc.SizeMM {
				o.PowerCables[i].UnitPrice = p
				replaced = true
			}
		}
		if !replaced {
			return o, fmt.Errorf("prices.power_cables: no cable item for %v mm²", pc.SizeMM)
		}
	}

	if len(c.BOM.Enclosures) > 0 {
		if len(c.BOM.Enclosures) != 4 {
			return o, fmt.Errorf("bom.enclosures: exactly 4 buckets are required, got %d", len(c.BOM.Enclosures))
		}
		for i, e := range c.BOM.Enclosures {
			b := bom.EnclosureBucket{Label: e.Label, Width: e.Width, Height: e.Height, Depth: e.Depth, UnitPrice: o.Enclosures[i].UnitPrice}
			if err := set(&b.UnitPrice, e.Price, fmt.Sprintf("enclosures[%d]", i)); err != nil {
				return o, err
			}
			o.Enclosures[i] = b
		}
	}
	return o, o.Validate()
}
