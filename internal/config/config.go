package config

import (
	"log"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Bot     BotConfig
	Marzban MarzbanConfig
	Store   StoreConfig
	Redis   RedisConfig
	Plans   PlansConfig
	Paging  PagingConfig
	Cron    CronConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type BotConfig struct {
	Token      string
	WebhookURL string
	AdminIDs   []int64
	SupportIDs []int64
}

type MarzbanConfig struct {
	BaseURL   string
	Username  string
	Password  string
	VerifySSL bool
}

type StoreConfig struct {
	Path string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// PlansConfig holds pricing in Telegram Stars and the remote-account
// name prefix.
type PlansConfig struct {
	StarsPerMonth  int
	StarsPerGB     int
	UsernamePrefix string
}

type PagingConfig struct {
	UsersPerPage  int
	AdminsPerPage int
}

type CronConfig struct {
	ExpiryWarnDays int
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_PATH", "vpn_bot.db")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("VERIFY_SSL", false)
	viper.SetDefault("USERNAME_PREFIX", "qwqvpn")
	viper.SetDefault("STAR_PRICE_PER_MONTH", 1)
	viper.SetDefault("STAR_PRICE_PER_GB", 1)
	viper.SetDefault("USERS_PER_PAGE", 20)
	viper.SetDefault("ADMINS_PER_PAGE", 50)
	viper.SetDefault("EXPIRY_WARN_DAYS", 3)

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Bot: BotConfig{
			Token:      viper.GetString("BOT_TOKEN"),
			WebhookURL: viper.GetString("BOT_WEBHOOK_URL"),
			AdminIDs:   parseIDList(viper.GetString("ADMIN_TG_IDS")),
			SupportIDs: parseIDList(viper.GetString("SUPPORT_TG_IDS")),
		},
		Marzban: MarzbanConfig{
			BaseURL:   strings.TrimRight(viper.GetString("MARZBAN_API_URL"), "/"),
			Username:  viper.GetString("MARZBAN_USERNAME"),
			Password:  viper.GetString("MARZBAN_PASSWORD"),
			VerifySSL: viper.GetBool("VERIFY_SSL"),
		},
		Store: StoreConfig{
			Path: viper.GetString("DB_PATH"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Plans: PlansConfig{
			StarsPerMonth:  viper.GetInt("STAR_PRICE_PER_MONTH"),
			StarsPerGB:     viper.GetInt("STAR_PRICE_PER_GB"),
			UsernamePrefix: viper.GetString("USERNAME_PREFIX"),
		},
		Paging: PagingConfig{
			UsersPerPage:  viper.GetInt("USERS_PER_PAGE"),
			AdminsPerPage: viper.GetInt("ADMINS_PER_PAGE"),
		},
		Cron: CronConfig{
			ExpiryWarnDays: viper.GetInt("EXPIRY_WARN_DAYS"),
		},
	}

	if cfg.Bot.Token == "" {
		log.Println("WARNING: BOT_TOKEN is not set")
	}
	if cfg.Marzban.BaseURL == "" {
		log.Println("WARNING: MARZBAN_API_URL is not set")
	}

	return cfg, nil
}

// IsAdmin reports whether the Telegram ID belongs to an administrator.
func (b *BotConfig) IsAdmin(id int64) bool {
	return containsID(b.AdminIDs, id)
}

// IsSupport reports whether the ID is support staff (and not an admin).
func (b *BotConfig) IsSupport(id int64) bool {
	return containsID(b.SupportIDs, id) && !containsID(b.AdminIDs, id)
}

// HasSupportAccess reports whether the ID may handle support tickets.
func (b *BotConfig) HasSupportAccess(id int64) bool {
	return containsID(b.SupportIDs, id) || containsID(b.AdminIDs, id)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func parseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
