package shared

import (
	"encoding/json"
	"github.com/tailscale/hujson"
	"log"
	"os"
	"time"
)

const (
	configVarName  = "CONFIG"                      // If set, will load config.json from this path and not from devConfigPath
	secretsVarName = "SECRETS"                     // If set, will load secrets.json from this path and not from devSecretsPath
	devConfigPath  = "../../dev/config.dev.jsonc"  // Path to config.json in development environment
	devSecretsPath = "../../dev/secrets.dev.jsonc" // Path to secrets.json in development environment
)

type Config struct {
	Secrets              Secrets       `json:"-"`
	LogFile              string        `json:"log_file"`
	LogLevel             string        `json:"log_level"`
	ServicePort          uint          `json:"service_port"`
	Host                 string        `json:"host"`
	DbFile               string        `json:"db_file"`
	InboxVerifyMode      string        `json:"inbox_verify_mode"` // "strict" or "deferred"
	UserActorsEnabled    bool          `json:"user_actors_enabled"`
	BlogActorEnabled     bool          `json:"blog_actor_enabled"`
	InteractionsEnabled  bool          `json:"interactions_enabled"`
	FollowerStaleHours   int           `json:"follower_stale_hours"`
	ResolverCacheMinutes int           `json:"resolver_cache_minutes"`
	Schedule             Schedule      `json:"schedule"`
	Interactions         Redirects     `json:"interaction_redirects"`
	ProfileDir           string        `json:"profile_dir"`
	ProfileKeepDays      int           `json:"profile_keep_days"`
	Blog                 *BlogInfo     `json:"blog"`
}

type Schedule struct {
	HealthCheckHours int `json:"health_check_hours"`
	PruneHours       int `json:"prune_hours"`
}

// Redirects are the local pages the interaction discovery endpoint sends
// visitors to; {uri} is replaced with the remote object's URI.
type Redirects struct {
	FollowUrl string `json:"follow_url"`
	ReplyUrl  string `json:"reply_url"`
}

type BlogInfo struct {
	User      string    `json:"user"`
	Name      string    `json:"name"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published"`
	PubKey    string    `json:"pub_key"`
	PrivKey   string    `json:"priv_key"`
}

type Secrets struct {
	PrivKeyPass string   `json:"privkey_passphrase"`
	ApiKeys     []string `json:"api_keys"`
	MetricsAuth string   `json:"metrics_auth"`
}

func LoadConfig() *Config {

	// Where are our config and secrets files?
	cfgPath := os.Getenv(configVarName)
	if len(cfgPath) == 0 {
		cfgPath = devConfigPath
	}
	secretsPath := os.Getenv(secretsVarName)
	if len(secretsPath) == 0 {
		secretsPath = devSecretsPath
	}

	// Read config file
	var config Config
	mustDeserializeFile(cfgPath, &config)
	// Read secrets member from secrets file
	mustDeserializeFile(secretsPath, &config.Secrets)
	return &config
}

func mustDeserializeFile[T any](fileName string, obj *T) {
	var err error
	var cfgJson []byte
	cfgJson, err = os.ReadFile(fileName)
	if err != nil {
		log.Fatal(err)
	}
	// JSONC => JSON
	cfgJson, err = standardizeJSON(cfgJson)
	if err != nil {
		log.Fatal(err)
	}
	// Parse
	if err := json.Unmarshal(cfgJson, obj); err != nil {
		log.Fatal(err)
	}
}

func standardizeJSON(b []byte) ([]byte, error) {
	ast, err := hujson.Parse(b)
	if err != nil {
		return b, err
	}
	ast.Standardize()
	return ast.Pack(), nil
}
