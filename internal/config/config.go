package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pion/webrtc/v3"
)

type Config struct {
	Env       string          `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebRTC    WebRTCConfig    `yaml:"webrtc"`
	Signaling SignalingConfig `yaml:"signaling"`
	Database  DatabaseConfig  `yaml:"database"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

type WebRTCConfig struct {
	STUNServers    []string `yaml:"stun_servers" env:"STUN_SERVERS"`
	TURNServers    []string `yaml:"turn_servers" env:"TURN_SERVERS"`
	TURNUsername   string   `yaml:"turn_username" env:"TURN_USERNAME"`
	TURNCredential string   `yaml:"turn_credential" env:"TURN_CREDENTIAL"`
}

type SignalingConfig struct {
	EventBuffer      int           `yaml:"event_buffer" env-default:"64"`
	WriteWait        time.Duration `yaml:"write_wait" env-default:"10s"`
	PongWait         time.Duration `yaml:"pong_wait" env-default:"60s"`
	MaxMessageBytes  int64         `yaml:"max_message_bytes" env-default:"65536"`
	SignalsPerSecond float64       `yaml:"signals_per_second" env-default:"20"`
	SignalBurst      int           `yaml:"signal_burst" env-default:"40"`
	VerifyInterval   time.Duration `yaml:"verify_interval" env-default:"1m"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN" env-default:""`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Signaling.EventBuffer <= 0 {
		c.Signaling.EventBuffer = 64
	}
	if c.Signaling.PongWait <= 0 {
		c.Signaling.PongWait = 60 * time.Second
	}
	if c.Signaling.WriteWait <= 0 {
		c.Signaling.WriteWait = 10 * time.Second
	}
	if c.Signaling.MaxMessageBytes <= 0 {
		c.Signaling.MaxMessageBytes = 64 * 1024
	}
	if c.Signaling.SignalBurst <= 0 {
		c.Signaling.SignalBurst = 1
	}
}

// PingPeriod is how often the server pings an idle push channel. It must be
// shorter than PongWait.
func (s SignalingConfig) PingPeriod() time.Duration {
	return (s.PongWait * 9) / 10
}

// ICEServers builds the list advertised to clients. TURN servers share one
// set of credentials.
func (c *Config) ICEServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(c.WebRTC.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: c.WebRTC.STUNServers})
	}
	if len(c.WebRTC.TURNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:           c.WebRTC.TURNServers,
			Username:       c.WebRTC.TURNUsername,
			Credential:     c.WebRTC.TURNCredential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return servers
}
