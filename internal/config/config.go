package config

import "time"

type Config struct {
	ConfigVersion int           `yaml:"configVersion"`
	Server        ServerConfig  `yaml:"server"`
	Upstreams     []Upstream    `yaml:"upstreams"`
	Routes        []Route       `yaml:"routes"`
	Firewall      Firewall      `yaml:"firewall"`
	Exclusions    Exclusions    `yaml:"exclusions"`
	Admin         AdminConfig   `yaml:"admin"`
	Logging       LoggingConfig `yaml:"logging"`
	Metrics       MetricsConfig `yaml:"metrics"`

	baseDir string `yaml:"-"`
}

type ServerConfig struct {
	Listen            string        `yaml:"listen"`
	TrustForwardedFor bool          `yaml:"trustForwardedFor"`
	Timeout           time.Duration `yaml:"timeout"`
	TLS               TLSConfig     `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

type Upstream struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type Route struct {
	Match    RouteMatch `yaml:"match"`
	Upstream string     `yaml:"upstream"`
}

type RouteMatch struct {
	Host       string `yaml:"host"`
	PathPrefix string `yaml:"pathPrefix"`
}

// Firewall lists the detectors in evaluation order.
type Firewall struct {
	Mode            string      `yaml:"mode"`
	BlockStatusCode int         `yaml:"blockStatusCode"`
	BlockBody       string      `yaml:"blockBody"`
	Components      []Component `yaml:"components"`
}

type Component struct {
	Type       string            `yaml:"type"`
	Strict     bool              `yaml:"strict"`
	DeniedList map[string]string `yaml:"deniedList"`
}

type Exclusions struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type AdminConfig struct {
	Enabled bool    `yaml:"enabled"`
	Listen  string  `yaml:"listen"`
	Token   string  `yaml:"token"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DecisionLog string `yaml:"decisionLog"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

const (
	ModeEnforce = "enforce"
	ModeShadow  = "shadow"
)

const (
	ComponentHeader    = "header"
	ComponentIP        = "ip"
	ComponentUserAgent = "user_agent"
)

const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const defaultTimeout = 30 * time.Second

func (c *Config) BaseDir() string {
	return c.baseDir
}

func (c *Config) ResolvePath(path string) string {
	return c.resolvePath(path)
}

// EffectiveMode returns the firewall mode, defaulting to enforce.
func (f Firewall) EffectiveMode() string {
	if f.Mode == "" {
		return ModeEnforce
	}
	return f.Mode
}

func (s ServerConfig) EffectiveTimeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultTimeout
	}
	return s.Timeout
}
