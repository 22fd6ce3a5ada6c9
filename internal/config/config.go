package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env-default:"8080"`
	Redis      Redis  `yaml:"redis"`
	Game       Game   `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

type Game struct {
	MinBet         int  `yaml:"min-bet" env-default:"1"`
	MaxBet         int  `yaml:"max-bet" env-default:"100"`
	InitialBalance int  `yaml:"initial-balance" env-default:"100"`
	BustThreshold  int  `yaml:"bust-threshold" env-default:"21"`
	DealerStand    int  `yaml:"dealer-stand" env-default:"17"`
	PenaltyCards   bool `yaml:"penalty-cards" env-default:"true"`

	BettingSeconds     int `yaml:"betting-seconds" env-default:"30"`
	DealerGraceSeconds int `yaml:"dealer-grace-seconds" env-default:"60"`
	DisconnectSeconds  int `yaml:"disconnect-seconds" env-default:"120"`
	SweepSeconds       int `yaml:"sweep-seconds" env-default:"30"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Game) BettingDuration() time.Duration {
	return time.Duration(that.BettingSeconds) * time.Second
}

func (that *Game) DealerGraceDuration() time.Duration {
	return time.Duration(that.DealerGraceSeconds) * time.Second
}

// DisconnectDuration - how long a disconnected player keeps their seat
// before the sweep purges them.
func (that *Game) DisconnectDuration() time.Duration {
	return time.Duration(that.DisconnectSeconds) * time.Second
}

func (that *Game) SweepInterval() time.Duration {
	return time.Duration(that.SweepSeconds) * time.Second
}
