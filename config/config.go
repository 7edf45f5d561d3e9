// Package config loads the yaml file describing outputs, transport and tracks.
package config

import (
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Output struct {
	// MIDI output port, a virtual port with this name is created if missing
	Port   string `yaml:"port"`
	Serial string `yaml:"serial"`
	Baud   int    `yaml:"baud"`
}

type Track struct {
	File     string `yaml:"file"`
	Quantize bool   `yaml:"quantize"`
	// rewrites every channel message to this channel, -1 keeps the file's
	Channel int `yaml:"channel"`
}

type Config struct {
	Output       Output        `yaml:"output"`
	Tempo        float64       `yaml:"tempo"`
	Length       float64       `yaml:"length"`
	Loop         bool          `yaml:"loop"`
	MaxPlayCount int           `yaml:"max_play_count"`
	SampleRate   int           `yaml:"sample_rate"`
	Buffer       time.Duration `yaml:"buffer"`
	LogLevel     string        `yaml:"log_level"`
	Tracks       []Track       `yaml:"tracks"`
}

func Default() Config {
	return Config{
		Output:     Output{Port: "beatseq", Baud: 31250},
		Tempo:      120,
		Length:     4,
		Loop:       true,
		SampleRate: 48000,
		Buffer:     20 * time.Millisecond,
		LogLevel:   "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "reading config")
	}
	if err := Parse(data, &c); err != nil {
		return c, errors.Wrap(err, path)
	}
	return c, nil
}

// Parse decodes data into c, keeping the values of c for missing keys.
func Parse(data []byte, c *Config) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "decoding yaml")
	}
	return c.Validate()
}

func (t *Track) UnmarshalYAML(value *yaml.Node) error {
	type plain Track
	p := plain{Channel: -1}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Track(p)
	return nil
}

func (c Config) Validate() error {
	switch {
	case !(c.Tempo > 0):
		return errors.Errorf("tempo must be positive, got %v", c.Tempo)
	case !(c.Length > 0):
		return errors.Errorf("length must be positive, got %v", c.Length)
	case c.SampleRate <= 0:
		return errors.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.Buffer <= 0:
		return errors.Errorf("buffer must be positive, got %v", c.Buffer)
	}
	if _, err := charmlog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	for i, t := range c.Tracks {
		if t.File == "" {
			return errors.Errorf("track %d: no file", i)
		}
		if t.Channel > 15 {
			return errors.Errorf("track %d: channel %d out of range", i, t.Channel)
		}
	}
	return nil
}

func (c Config) Level() charmlog.Level {
	lvl, err := charmlog.ParseLevel(c.LogLevel)
	if err != nil {
		return charmlog.InfoLevel
	}
	return lvl
}
