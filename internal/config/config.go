package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5m" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type MySQLConfig struct {
	// DSN empty means run on the in-memory store.
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	// Addr empty means cache resolver results in process.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ResolverConfig struct {
	RecipeFile    string   `yaml:"recipe_file"`
	DepthLimit    int      `yaml:"depth_limit"`
	MaxNodeBudget int      `yaml:"max_node_budget"`
	CacheEntries  int      `yaml:"cache_entries"`
	CacheTTL      Duration `yaml:"cache_ttl"`
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Redis    RedisConfig    `yaml:"redis"`
	Resolver ResolverConfig `yaml:"resolver"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		MySQL: MySQLConfig{
			MaxOpenConns: 50,
			MaxIdleConns: 10,
		},
		Redis: RedisConfig{},
		Resolver: ResolverConfig{
			RecipeFile:    "configs/recipes.json",
			DepthLimit:    3,
			MaxNodeBudget: 200,
			CacheEntries:  128,
			CacheTTL:      Duration(5 * time.Minute),
		},
	}
}

// Load reads the YAML file at path when it exists, then applies
// BUILDCREW_* environment overrides on top. A missing file is not an
// error so the server can boot from defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTP.Addr, "BUILDCREW_HTTP_ADDR")
	setString(&cfg.MySQL.DSN, "BUILDCREW_MYSQL_DSN")
	setString(&cfg.Redis.Addr, "BUILDCREW_REDIS_ADDR")
	setString(&cfg.Redis.Password, "BUILDCREW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BUILDCREW_REDIS_DB")
	setString(&cfg.Resolver.RecipeFile, "BUILDCREW_RECIPE_FILE")
	setInt(&cfg.Resolver.DepthLimit, "BUILDCREW_RESOLVER_DEPTH")
	setInt(&cfg.Resolver.MaxNodeBudget, "BUILDCREW_RESOLVER_BUDGET")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-integer env override", "key", key, "value", v)
		return
	}
	*dst = n
}
