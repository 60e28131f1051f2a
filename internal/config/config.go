// Package config loads the process's static, load-once-at-startup settings
// from a YAML file, with environment-variable overrides for the fields that
// should never be checked into a config file (SMTP and HTTP credentials).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the external configuration surface one field per key.
type Config struct {
	InvertKinect bool `yaml:"invert_kinect"`

	ArmTime       int `yaml:"arm_time"`
	PrealarmGrace int `yaml:"prealarm_grace"`
	NotifyTimeout int `yaml:"notify_timeout"`

	ValidThreshold  int     `yaml:"valid_threshold"`
	ZThreshold      float64 `yaml:"z_threshold"`
	MotionThreshold float64 `yaml:"motion_threshold"`
	LostThreshold   int     `yaml:"lost_threshold"`
	DecayK          float64 `yaml:"decay_k"`

	SMTPServer   string `yaml:"smtp_server"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPTLS      bool   `yaml:"smtp_tls"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	MailFrom     string `yaml:"mail_from"`
	MailTo       string `yaml:"mail_to"`
	MailTemplate string `yaml:"mail_template"`

	PlaybackCommand string `yaml:"playback_command"`
	SerialPort      string `yaml:"serial_port"`

	WebPort  int    `yaml:"web_port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	ClipMaskPath string `yaml:"clip_mask_path"`
	LogLevel     string `yaml:"log_level"`
}

// defaults mirrors the original's hardcoded constants, used for any key the
// file does not set; a key the file sets explicitly, even to zero, keeps the
// file's value.
func defaults() Config {
	return Config{
		ArmTime:         30,
		PrealarmGrace:   10,
		NotifyTimeout:   60,
		ValidThreshold:  150000,
		ZThreshold:      0.05,
		MotionThreshold: 2000,
		LostThreshold:   2000,
		DecayK:          0.05,
		SMTPPort:        25,
		MailTemplate:    "Security alert: %s",
		WebPort:         8080,
		ClipMaskPath:    "depth_filter.npy",
		LogLevel:        "info",
	}
}

// envOverrides are the secret-bearing keys that may be supplied outside the
// checked-in config file. Name kept identical to the YAML key so operators
// only need to remember one name per setting.
var envOverrides = []struct {
	key    string
	target func(*Config) *string
}{
	{"smtp_server", func(c *Config) *string { return &c.SMTPServer }},
	{"smtp_user", func(c *Config) *string { return &c.SMTPUser }},
	{"smtp_password", func(c *Config) *string { return &c.SMTPPassword }},
	{"mail_from", func(c *Config) *string { return &c.MailFrom }},
	{"mail_to", func(c *Config) *string { return &c.MailTo }},
	{"username", func(c *Config) *string { return &c.Username }},
	{"password", func(c *Config) *string { return &c.Password }},
}

// Load reads and parses path, fills in unset fields from built-in defaults,
// then applies any environment-variable override present for a credential
// field.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.key); v != "" {
			*o.target(cfg) = v
		}
	}
}
