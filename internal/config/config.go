package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Duet/internal/adapters/storage"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "DUET"

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`

	Log         LogConfig         `mapstructure:"log"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Effects     EffectsConfig     `mapstructure:"effects"`
	Media       MediaConfig       `mapstructure:"media"`
	Mirror      MirrorConfig      `mapstructure:"mirror"`
	Storage     StorageConfig     `mapstructure:"storage"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type CoordinatorConfig struct {
	InboxSize        int  `mapstructure:"inbox_size"`
	StrictInvariants bool `mapstructure:"strict_invariants"`
}

type EffectsConfig struct {
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type MediaConfig struct {
	AppID          string        `mapstructure:"app_id"`
	AppCertificate string        `mapstructure:"app_certificate"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	RelayEnabled   bool          `mapstructure:"relay_enabled"`
	STUNURLs       []string      `mapstructure:"stun_urls"`
}

type MirrorConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"`
	InMemory      bool          `mapstructure:"in_memory"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type StorageConfig struct {
	UploadDir      string           `mapstructure:"upload_dir"`
	MaxUploadBytes int64            `mapstructure:"max_upload_bytes"`
	S3             storage.S3Config `mapstructure:"s3"`
}

type RateLimitConfig struct {
	StartLimit    int           `mapstructure:"start_limit"`
	StartInterval time.Duration `mapstructure:"start_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "change-me")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)

	v.SetDefault("coordinator.inbox_size", 256)
	v.SetDefault("coordinator.strict_invariants", false)

	v.SetDefault("effects.queue_size", 1024)
	v.SetDefault("effects.timeout", "5s")

	// Existing .env files carry AGORA_APP_ID and AGORA_APP_CERTIFICATE.
	v.SetDefault("media.app_id", os.Getenv("AGORA_APP_ID"))
	v.SetDefault("media.app_certificate", os.Getenv("AGORA_APP_CERTIFICATE"))
	v.SetDefault("media.token_ttl", "1h")
	v.SetDefault("media.relay_enabled", true)
	v.SetDefault("media.stun_urls", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("mirror.enabled", true)
	v.SetDefault("mirror.path", "./data/mirror")
	v.SetDefault("mirror.in_memory", false)
	v.SetDefault("mirror.sweep_interval", "5m")

	v.SetDefault("storage.upload_dir", "./uploads")
	v.SetDefault("storage.max_upload_bytes", 50<<20)
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.presign_ttl", "24h")

	v.SetDefault("ratelimit.start_limit", 5)
	v.SetDefault("ratelimit.start_interval", "10s")
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then DUET_* env
// vars, then flags from args; later sources win.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg(".env not loaded")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fs := pflag.NewFlagSet("duet", pflag.ContinueOnError)
	fs.Int("port", v.GetInt("port"), "HTTP listen port")
	fs.String("mode", v.GetString("mode"), "gin mode: debug, release or test")
	configFile := fs.String("config", "", "config file path, overrides CONFIG_ENV")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fileName := *configFile
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"port", "mode"} {
		if err := v.BindPFlag(name, fs.Lookup(name)); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}
