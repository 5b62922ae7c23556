package config

import "time"

type AppConfig struct {
	DBDriver   string        `yaml:"db_driver" env:"MISSIONCTL_DB_DRIVER" env-default:"sqlite"`
	DBURL      string        `yaml:"db_url" env:"MISSIONCTL_DB_URL"`
	DBPath     string        `yaml:"db_path" env:"MISSIONCTL_DB_PATH" env-default:"data/missionctl.db"`
	ListenAddr string        `yaml:"listen_addr" env:"MISSIONCTL_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"MISSIONCTL_SESSION_TTL" env-default:"12h"`
	AppEnv     string        `yaml:"app_env" env:"MISSIONCTL_APP_ENV"`
	Pepper     string        `yaml:"pepper" env:"MISSIONCTL_PEPPER"`
	CSRFKey    string        `yaml:"csrf_key" env:"MISSIONCTL_CSRF_KEY"`

	Workspaces WorkspacesConfig `yaml:"workspaces"`
	Wiki       WikiConfig       `yaml:"wiki"`
	Invites    InvitesConfig    `yaml:"invites"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
}

type WorkspacesConfig struct {
	MaxCount         int `yaml:"max_count" env:"MISSIONCTL_WORKSPACES_MAX" env-default:"5"`
	CascadeBatchSize int `yaml:"cascade_batch_size" env:"MISSIONCTL_WORKSPACES_CASCADE_BATCH" env-default:"500"`
}

type WikiConfig struct {
	HistoryLimit int `yaml:"history_limit" env:"MISSIONCTL_WIKI_HISTORY_LIMIT" env-default:"0"`
	MaxTreeDepth int `yaml:"max_tree_depth" env:"MISSIONCTL_WIKI_MAX_DEPTH" env-default:"32"`
}

type InvitesConfig struct {
	TokenRetries int           `yaml:"token_retries" env:"MISSIONCTL_INVITES_TOKEN_RETRIES" env-default:"3"`
	TTL          time.Duration `yaml:"ttl" env:"MISSIONCTL_INVITES_TTL" env-default:"168h"`
}

type ReconcilerConfig struct {
	Enabled  bool   `yaml:"enabled" env:"MISSIONCTL_RECONCILER_ENABLED" env-default:"true"`
	Schedule string `yaml:"schedule" env:"MISSIONCTL_RECONCILER_SCHEDULE" env-default:"@every 10m"`
}

const maxUserSessionTTL = 24 * time.Hour

func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	ttl := maxUserSessionTTL
	if c != nil && c.SessionTTL > 0 {
		ttl = c.SessionTTL
	}
	if ttl > maxUserSessionTTL {
		return maxUserSessionTTL
	}
	return ttl
}
