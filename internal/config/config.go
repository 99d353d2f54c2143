package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds every tunable for the server. Values come from a config file
// (eigencore.yaml next to the binary) or environment variables prefixed with
// EIGENCORE_, with the defaults below as fallback.
type Config struct {
	Addr       string
	DBPath     string
	JWTSecret  string
	TokenTTL   time.Duration
	CORSOrigin string

	// Room settings.
	RoomCodeLength    int
	DefaultMaxPlayers int
	MaxMaxPlayers     int

	// Host grace: how long a waiting room survives a vanished host, and how
	// often the sweeper looks for such rooms.
	HostGracePeriod time.Duration
	SweepInterval   time.Duration

	// Real-time channel timings.
	WriteWait        time.Duration
	PongWait         time.Duration
	BroadcastTimeout time.Duration

	RequestTimeout time.Duration
}

// PingPeriod must be shorter than PongWait so a healthy peer always has a
// ping in flight before its read deadline lapses.
func (c Config) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("eigencore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("eigencore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", "0.0.0.0:8080")
	v.SetDefault("db.path", "eigencore.db")
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("cors.origin", "*")
	v.SetDefault("room.code_length", 6)
	v.SetDefault("room.default_max_players", 2)
	v.SetDefault("room.max_max_players", 16)
	v.SetDefault("room.host_grace_period", 2*time.Minute)
	v.SetDefault("room.sweep_interval", 30*time.Second)
	v.SetDefault("ws.write_wait", 10*time.Second)
	v.SetDefault("ws.pong_wait", 60*time.Second)
	v.SetDefault("ws.broadcast_timeout", 5*time.Second)
	v.SetDefault("request_timeout", 10*time.Second)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			log.Warn().Err(err).Msg("config file unreadable, using defaults")
		}
	} else {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("config loaded")
	}

	return Config{
		Addr:              v.GetString("addr"),
		DBPath:            v.GetString("db.path"),
		JWTSecret:         v.GetString("jwt.secret"),
		TokenTTL:          v.GetDuration("jwt.ttl"),
		CORSOrigin:        v.GetString("cors.origin"),
		RoomCodeLength:    v.GetInt("room.code_length"),
		DefaultMaxPlayers: v.GetInt("room.default_max_players"),
		MaxMaxPlayers:     v.GetInt("room.max_max_players"),
		HostGracePeriod:   v.GetDuration("room.host_grace_period"),
		SweepInterval:     v.GetDuration("room.sweep_interval"),
		WriteWait:         v.GetDuration("ws.write_wait"),
		PongWait:          v.GetDuration("ws.pong_wait"),
		BroadcastTimeout:  v.GetDuration("ws.broadcast_timeout"),
		RequestTimeout:    v.GetDuration("request_timeout"),
	}
}
