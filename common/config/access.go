package config

import (
	"errors"
	"io/ioutil"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

func Load(path string) (*DendriteConfig, error) {
	buffer, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.New("error reading config file: " + err.Error())
	}

	c := &DendriteConfig{}
	if err = yaml.Unmarshal(buffer, c); err != nil {
		return nil, errors.New("error parsing config file: " + err.Error())
	}

	if c.MediaApi == nil {
		return nil, errors.New("missing media_api section in config")
	}

	return c, nil
}

// ConnectionString prefers the global database over a media_api-scoped one,
// matching how Dendrite itself resolves its database settings.
func (c *DendriteConfig) ConnectionString() (string, error) {
	if c.Global != nil && c.Global.Database != nil && c.Global.Database.ConnectionString != "" {
		return c.Global.Database.ConnectionString, nil
	}
	if c.MediaApi.Database != nil && c.MediaApi.Database.ConnectionString != "" {
		logrus.Debug("No database section in global, but one in media_api, using that")
		return c.MediaApi.Database.ConnectionString, nil
	}
	return "", errors.New("did not find a connection string for the media database")
}

func (c *DendriteConfig) MediaBasePath() (string, error) {
	if c.MediaApi.BasePath == "" {
		return "", errors.New("missing base_path in media_api")
	}
	return c.MediaApi.BasePath, nil
}

func (c *DendriteConfig) SentryDsn() string {
	if c.Global == nil || !c.Global.Sentry.Enabled {
		return ""
	}
	return c.Global.Sentry.Dsn
}
