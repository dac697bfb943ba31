package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the non-secret option table from spec.md §6, loaded from
// environment variables (prefixed EVENTCORE_) or an optional YAML file —
// everything Vault shouldn't hold because it isn't a credential.
type Settings struct {
	// PersistEventType is loaded from persist_event_type (default true).
	// No component of this module reads it: it does not filter which
	// events are stored, and the mapper always stores each record's topic.
	PersistEventType bool `mapstructure:"persist_event_type"`

	ApplicationName string `mapstructure:"application_name"`
	PipelineID      int    `mapstructure:"pipeline_id"`

	NotificationSectionSize uint64        `mapstructure:"notification_section_size"`
	PromptTimeout           time.Duration `mapstructure:"prompt_timeout"`
	LockTimeout             time.Duration `mapstructure:"lock_timeout"`
}

// LoadSettings reads Settings from the environment (EVENTCORE_* vars) and,
// if configPath is non-empty, a YAML file, with defaults matching
// notification.DefaultSectionSize and notification.DefaultPromptTimeout.
func LoadSettings(configPath string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("eventcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("persist_event_type", true)
	v.SetDefault("application_name", "")
	v.SetDefault("pipeline_id", 0)
	v.SetDefault("notification_section_size", 200)
	v.SetDefault("prompt_timeout", 5*time.Second)
	v.SetDefault("lock_timeout", 30*time.Second)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
