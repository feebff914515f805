package notifications

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds dispatcher settings read from the environment.
type Config struct {
	// ChannelsFile is an optional YAML file of named channel registrations.
	ChannelsFile string `env:"NOTIFY_CHANNELS_FILE"`
	// Locale is the dispatcher level locale override.
	Locale string `env:"NOTIFY_LOCALE"`
	// FailurePolicy is "abort" or "continue".
	FailurePolicy string `env:"NOTIFY_FAILURE_POLICY" envDefault:"abort"`
	// Connection is the default queue connection name.
	Connection string `env:"NOTIFY_QUEUE_CONNECTION" envDefault:"default"`
	// BroadcastBuffer is the per subscriber buffer of the broadcast channel.
	BroadcastBuffer int `env:"NOTIFY_BROADCAST_BUFFER" envDefault:"32"`
	// BroadcastReplay is the number of recent messages replayed per topic.
	BroadcastReplay int `env:"NOTIFY_BROADCAST_REPLAY" envDefault:"20"`
	// BroadcastTopics bounds the number of topics with replay history.
	BroadcastTopics int `env:"NOTIFY_BROADCAST_TOPICS" envDefault:"10000"`
}

// channelsFile is the YAML layout of a channels file:
//
//	channels:
//	  database:
//	    driver: database
//	  alerts:
//	    driver: webhook
//	    options:
//	      secret: s3cr3t
//	      max_retries: 5
type channelsFile struct {
	Channels map[string]ChannelConfig `yaml:"channels"`
}

// ParseChannelConfigs decodes a YAML channels document.
func ParseChannelConfigs(data []byte) (map[string]ChannelConfig, error) {
	var f channelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrFailedToLoadChannelsFile, err)
	}
	for name, cfg := range f.Channels {
		if cfg.Driver == "" {
			return nil, errors.Join(ErrFailedToLoadChannelsFile, fmt.Errorf("channel %q has no driver", name))
		}
	}
	if f.Channels == nil {
		f.Channels = map[string]ChannelConfig{}
	}
	return f.Channels, nil
}

// LoadChannelConfigs reads and decodes the channels file at path.
func LoadChannelConfigs(path string) (map[string]ChannelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadChannelsFile, err)
	}
	return ParseChannelConfigs(data)
}
