// Package config loads client settings from an optional YAML file and
// LIMINAL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	liminal "github.com/liminal-ai-security/liminal-sdk-go"
	"github.com/liminal-ai-security/liminal-sdk-go/auth"
	"github.com/liminal-ai-security/liminal-sdk-go/llm"
	"github.com/liminal-ai-security/liminal-sdk-go/prompt"
	"github.com/liminal-ai-security/liminal-sdk-go/thread"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "LIMINAL"

// Settings is the file and environment view of a client.
type Settings struct {
	ServerURL      string  `mapstructure:"server_url" yaml:"server_url"`
	Source         string  `mapstructure:"source" yaml:"source"`
	OmitSource     bool    `mapstructure:"omit_source_query" yaml:"omit_source_query"`
	Scheme         string  `mapstructure:"scheme" yaml:"scheme"`
	RequestTimeout string  `mapstructure:"request_timeout" yaml:"request_timeout"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst      int     `mapstructure:"rate_burst" yaml:"rate_burst"`
	UserAgent      string  `mapstructure:"user_agent" yaml:"user_agent"`

	Auth   AuthSettings  `mapstructure:"auth" yaml:"auth"`
	Routes RouteSettings `mapstructure:"routes" yaml:"routes"`
}

// AuthSettings configures the device-code provider and the direct
// authentication entry points.
type AuthSettings struct {
	TenantID         string   `mapstructure:"tenant_id" yaml:"tenant_id"`
	ClientID         string   `mapstructure:"client_id" yaml:"client_id"`
	Scopes           []string `mapstructure:"scopes" yaml:"scopes"`
	ChallengeTimeout string   `mapstructure:"challenge_timeout" yaml:"challenge_timeout"`
	SessionID        string   `mapstructure:"session_id" yaml:"session_id"`
	RefreshToken     string   `mapstructure:"refresh_token" yaml:"refresh_token"`
	APIKey           string   `mapstructure:"api_key" yaml:"api_key"`
}

// RouteSettings overrides endpoint paths. Empty values keep the defaults.
type RouteSettings struct {
	OAuthAccessToken    string `mapstructure:"oauth_access_token" yaml:"oauth_access_token"`
	UsersMe             string `mapstructure:"users_me" yaml:"users_me"`
	TestAutomationLogin string `mapstructure:"test_automation_login" yaml:"test_automation_login"`
	RefreshToken        string `mapstructure:"refresh_token" yaml:"refresh_token"`
	ModelInstances      string `mapstructure:"model_instances" yaml:"model_instances"`
	Threads             string `mapstructure:"threads" yaml:"threads"`
	ContextHistory      string `mapstructure:"context_history" yaml:"context_history"`
	Analyze             string `mapstructure:"analyze" yaml:"analyze"`
	Cleanse             string `mapstructure:"cleanse" yaml:"cleanse"`
	Hydrate             string `mapstructure:"hydrate" yaml:"hydrate"`
	Submit              string `mapstructure:"submit" yaml:"submit"`
}

var keys = []string{
	"server_url",
	"source",
	"omit_source_query",
	"scheme",
	"request_timeout",
	"rate_limit",
	"rate_burst",
	"user_agent",
	"auth.tenant_id",
	"auth.client_id",
	"auth.scopes",
	"auth.challenge_timeout",
	"auth.session_id",
	"auth.refresh_token",
	"auth.api_key",
	"routes.oauth_access_token",
	"routes.users_me",
	"routes.test_automation_login",
	"routes.refresh_token",
	"routes.model_instances",
	"routes.threads",
	"routes.context_history",
	"routes.analyze",
	"routes.cleanse",
	"routes.hydrate",
	"routes.submit",
}

// DiscoverPath resolves the settings file: flagPath if it exists, then
// $LIMINAL_CONFIG, then ~/.liminal/config.yaml.
func DiscoverPath(flagPath string) string {
	if flagPath != "" {
		if _, err := os.Stat(flagPath); err == nil {
			return flagPath
		}
	}

	if envPath := os.Getenv(EnvPrefix + "_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".liminal/config.yaml"
	}
	return filepath.Join(homeDir, ".liminal", "config.yaml")
}

// Load reads path when it exists and overlays LIMINAL_* environment
// variables, e.g. LIMINAL_SERVER_URL or LIMINAL_AUTH_CLIENT_ID.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	s.Auth.Scopes = splitList(strings.Join(s.Auth.Scopes, ","))
	return s, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ClientConfig converts s into a client configuration. Logger, HTTPClient
// and Clock are left for the caller.
func (s *Settings) ClientConfig() (liminal.Config, error) {
	if s.ServerURL == "" {
		return liminal.Config{}, fmt.Errorf("server_url is required (set %s_SERVER_URL)", EnvPrefix)
	}

	timeout, err := parseDuration("request_timeout", s.RequestTimeout)
	if err != nil {
		return liminal.Config{}, err
	}

	cfg := liminal.Config{
		ServerURL:       s.ServerURL,
		RequestTimeout:  timeout,
		Source:          s.Source,
		OmitSourceQuery: s.OmitSource,
		Scheme:          auth.Scheme(strings.ToLower(s.Scheme)),
		RateLimit:       s.RateLimit,
		RateBurst:       s.RateBurst,
		UserAgent:       s.UserAgent,
		Routes: liminal.Routes{
			Auth: liminal.AuthRoutes{
				OAuthAccessToken:    s.Routes.OAuthAccessToken,
				UsersMe:             s.Routes.UsersMe,
				TestAutomationLogin: s.Routes.TestAutomationLogin,
				RefreshToken:        s.Routes.RefreshToken,
			},
			LLM: llm.Routes{ModelInstances: s.Routes.ModelInstances},
			Thread: thread.Routes{
				Threads:        s.Routes.Threads,
				ContextHistory: s.Routes.ContextHistory,
			},
			Prompt: prompt.Routes{
				Analyze: s.Routes.Analyze,
				Cleanse: s.Routes.Cleanse,
				Hydrate: s.Routes.Hydrate,
				Submit:  s.Routes.Submit,
			},
		},
	}
	return cfg, nil
}

// DeviceCodeOptions returns the provider options implied by s.Auth.
func (s *Settings) DeviceCodeOptions() ([]auth.DeviceCodeOption, error) {
	timeout, err := parseDuration("auth.challenge_timeout", s.Auth.ChallengeTimeout)
	if err != nil {
		return nil, err
	}

	var opts []auth.DeviceCodeOption
	if len(s.Auth.Scopes) > 0 {
		opts = append(opts, auth.WithScopes(s.Auth.Scopes...))
	}
	if timeout > 0 {
		opts = append(opts, auth.WithChallengeTimeout(timeout))
	}
	return opts, nil
}

// DeviceCodeProvider builds the device-code provider configured by s.Auth.
func (s *Settings) DeviceCodeProvider(extra ...auth.DeviceCodeOption) (*auth.DeviceCodeFlowProvider, error) {
	if s.Auth.TenantID == "" || s.Auth.ClientID == "" {
		return nil, fmt.Errorf("auth.tenant_id and auth.client_id are required")
	}
	opts, err := s.DeviceCodeOptions()
	if err != nil {
		return nil, err
	}
	return auth.NewDeviceCodeFlowProvider(s.Auth.TenantID, s.Auth.ClientID, append(opts, extra...)...), nil
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
