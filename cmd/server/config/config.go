package config

import (
	"fmt"
	"time"
)

// BaseConfig is the root application configuration, loaded from
// config/app.json with optional environment overrides.
type BaseConfig struct {
	Name        string      `json:"name" koanf:"name"`
	Server      Server      `json:"server" koanf:"server"`
	Auth        Auth        `json:"auth" koanf:"auth"`
	Persistence Persistence `json:"persistence" koanf:"persistence"`
	SMTP        SMTP        `json:"smtp" koanf:"smtp"`
}

func (a *BaseConfig) Validate() error {
	if a.Auth.SigningKey == "" {
		return fmt.Errorf("config: auth.signing_key is required")
	}
	return nil
}

func (a *BaseConfig) GetName() string {
	return a.Name
}

func (a *BaseConfig) GetServer() Server {
	return a.Server
}

func (a *BaseConfig) GetAuth() Auth {
	return a.Auth
}

func (a *BaseConfig) GetPersistence() Persistence {
	return a.Persistence
}

func (a *BaseConfig) GetSMTP() SMTP {
	return a.SMTP
}

type Server struct {
	Addr string `json:"addr" koanf:"addr"`
}

func (s Server) GetAddr() string {
	if s.Addr == "" {
		return ":8572"
	}
	return s.Addr
}

// Auth satisfies the auth package Config interface.
type Auth struct {
	SigningKey            string   `json:"signing_key" koanf:"signing_key"`
	SigningMethod         string   `json:"signing_method" koanf:"signing_method"`
	ContextKey            string   `json:"context_key" koanf:"context_key"`
	TokenExpiration       int      `json:"token_expiration" koanf:"token_expiration"`
	ExtendedTokenDuration int      `json:"extended_token_duration" koanf:"extended_token_duration"`
	TokenLookup           string   `json:"token_lookup" koanf:"token_lookup"`
	AuthScheme            string   `json:"auth_scheme" koanf:"auth_scheme"`
	Issuer                string   `json:"issuer" koanf:"issuer"`
	Audience              []string `json:"audience" koanf:"audience"`
}

func (a Auth) GetSigningKey() string {
	return a.SigningKey
}

func (a Auth) GetSigningMethod() string {
	if a.SigningMethod == "" {
		return "HS256"
	}
	return a.SigningMethod
}

func (a Auth) GetContextKey() string {
	if a.ContextKey == "" {
		return "access_token"
	}
	return a.ContextKey
}

func (a Auth) GetTokenExpiration() int {
	if a.TokenExpiration == 0 {
		return 24
	}
	return a.TokenExpiration
}

func (a Auth) GetExtendedTokenDuration() int {
	return a.ExtendedTokenDuration
}

func (a Auth) GetTokenLookup() string {
	if a.TokenLookup == "" {
		return "header:Authorization,cookie:access_token"
	}
	return a.TokenLookup
}

func (a Auth) GetAuthScheme() string {
	if a.AuthScheme == "" {
		return "Bearer"
	}
	return a.AuthScheme
}

func (a Auth) GetIssuer() string {
	return a.Issuer
}

func (a Auth) GetAudience() []string {
	return a.Audience
}

type Persistence struct {
	Debug                 bool   `json:"debug" koanf:"debug"`
	Driver                string `json:"driver" koanf:"driver"`
	DSN                   string `json:"dsn" koanf:"dsn"`
	Server                string `json:"server" koanf:"server"`
	Database              string `json:"database" koanf:"database"`
	Username              string `json:"username" koanf:"username"`
	Password              string `json:"password" koanf:"password"`
	PingTimeoutExpression string `json:"ping_timeout" koanf:"ping_timeout"`
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

func (p Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p Persistence) GetDSN() string {
	if p.DSN == "" {
		return "file:taskdeck.db?cache=shared&mode=rwc"
	}
	return p.DSN
}

// GetOtelIdentifier returns an empty identifier, which disables otel
// instrumentation in go-persistence-bun.
func (p Persistence) GetOtelIdentifier() string {
	return ""
}

func (p Persistence) GetServer() string {
	return p.Server
}

func (p Persistence) GetDatabase() string {
	return p.Database
}

func (p Persistence) GetUsername() string {
	return p.Username
}

func (p Persistence) GetPassword() string {
	return p.Password
}

func (p Persistence) GetPingTimeout() time.Duration {
	if p.PingTimeoutExpression == "" {
		return 30 * time.Second
	}
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}

// SMTP configures outbound signup verification mail. An empty host selects
// the log mailer, which prints codes instead of delivering them.
type SMTP struct {
	Host     string `json:"host" koanf:"host"`
	Port     int    `json:"port" koanf:"port"`
	Username string `json:"username" koanf:"username"`
	Password string `json:"password" koanf:"password"`
	From     string `json:"from" koanf:"from"`
}

func (s SMTP) GetHost() string {
	return s.Host
}

func (s SMTP) GetPort() int {
	if s.Port == 0 {
		return 587
	}
	return s.Port
}

func (s SMTP) GetUsername() string {
	return s.Username
}

func (s SMTP) GetPassword() string {
	return s.Password
}

func (s SMTP) GetFrom() string {
	if s.From == "" {
		return "no-reply@taskdeck.local"
	}
	return s.From
}
