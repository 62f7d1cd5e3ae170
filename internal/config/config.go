package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultStackName = "FrontendStack"
	DefaultLogLevel  = "INFO"

	// Stack export names, prefixed by SiteConfig.ExportPrefix.
	DistributionExportName = "CloudfrontURL"
	BucketExportName       = "BucketName"

	// EnvPrefix namespaces the environment overrides, e.g. FRONTEND_STACK_NAME.
	EnvPrefix = "FRONTEND"
)

type Config struct {
	LogLevel  string            `yaml:"log_level" mapstructure:"log_level"`
	StackName string            `yaml:"stack_name" mapstructure:"stack_name"`
	Account   string            `yaml:"account" mapstructure:"account"`
	Region    string            `yaml:"region" mapstructure:"region"`
	Tags      map[string]string `yaml:"tags" mapstructure:"tags"`
	Site      SiteConfig        `yaml:"site" mapstructure:"site"`
}

// SiteConfig holds the knobs of the hosted frontend.
type SiteConfig struct {
	AssetPath         string   `yaml:"asset_path" mapstructure:"asset_path"`
	DefaultRootObject string   `yaml:"default_root_object" mapstructure:"default_root_object"`
	ErrorPagePath     string   `yaml:"error_page_path" mapstructure:"error_page_path"`
	InvalidationPaths []string `yaml:"invalidation_paths" mapstructure:"invalidation_paths"`
	PriceClass        string   `yaml:"price_class" mapstructure:"price_class"`
	Comment           string   `yaml:"comment" mapstructure:"comment"`
	ExportPrefix      string   `yaml:"export_prefix" mapstructure:"export_prefix"`
}

func Default() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		StackName: DefaultStackName,
		Site: SiteConfig{
			AssetPath:         "./resources/build/browser",
			DefaultRootObject: "index.html",
			ErrorPagePath:     "/index.html",
			InvalidationPaths: []string{"/*"},
		},
	}
}

// Loader resolves a Config from, lowest to highest precedence: defaults, the YAML file,
// the environment, bound flags and explicit overrides.
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")

	d := Default()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("stack_name", d.StackName)
	v.SetDefault("account", "")
	v.SetDefault("region", "")
	v.SetDefault("site.asset_path", d.Site.AssetPath)
	v.SetDefault("site.default_root_object", d.Site.DefaultRootObject)
	v.SetDefault("site.error_page_path", d.Site.ErrorPagePath)
	v.SetDefault("site.invalidation_paths", d.Site.InvalidationPaths)
	v.SetDefault("site.price_class", "")
	v.SetDefault("site.comment", "")
	v.SetDefault("site.export_prefix", "")

	// FRONTEND_LOG_LEVEL, FRONTEND_STACK_NAME, FRONTEND_SITE_PRICE_CLASS, ...
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("site.asset_path", EnvPrefix+"_ASSET_PATH")
	_ = v.BindEnv("site.export_prefix", EnvPrefix+"_EXPORT_PREFIX")
	_ = v.BindEnv("account", "CDK_DEFAULT_ACCOUNT")
	_ = v.BindEnv("region", "CDK_DEFAULT_REGION")

	return &Loader{v: v}
}

// BindFlag lets flag override key when the flag was set on the command line.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return errors.Errorf("no flag to bind to %s", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Set overrides key regardless of file, environment or flags.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// Load reads configFile when given and validates the merged result.
// Unknown keys in the file are rejected.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "parsing config file %s", configFile)
		}
	}

	config := &Config{}
	if err := l.v.UnmarshalExact(config); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if configFile != "" {
		tags, err := fileTags(configFile)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing config file %s", configFile)
		}
		if tags != nil {
			config.Tags = tags
		}
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config contents")
	}
	return config, nil
}

// Load layers an optional YAML file and the environment over Default and validates the result.
func Load(configFile string) (*Config, error) {
	return NewLoader().Load(configFile)
}

// fileTags rereads the tags section: viper folds keys to lower case and tag keys are case-sensitive.
func fileTags(configFile string) (map[string]string, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Tags map[string]string `yaml:"tags"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw.Tags, nil
}

func (c Config) Validate() error {
	if _, ok := logLevels[strings.ToUpper(c.LogLevel)]; !ok {
		return errors.Errorf("invalid LogLevel %q", c.LogLevel)
	}
	if c.StackName == "" {
		return errors.New("must provide a non-empty StackName")
	}
	return c.Site.Validate()
}

func (s SiteConfig) Validate() error {
	if s.AssetPath == "" {
		return errors.New("must provide a non-empty AssetPath")
	}
	if s.DefaultRootObject == "" || strings.HasPrefix(s.DefaultRootObject, "/") {
		return errors.Errorf("DefaultRootObject %q must be a non-empty key without a leading slash", s.DefaultRootObject)
	}
	if !strings.HasPrefix(s.ErrorPagePath, "/") {
		return errors.Errorf("ErrorPagePath %q must start with a slash", s.ErrorPagePath)
	}
	if len(s.InvalidationPaths) == 0 {
		return errors.New("must provide at least one InvalidationPath")
	}
	for _, p := range s.InvalidationPaths {
		if !strings.HasPrefix(p, "/") {
			return errors.Errorf("InvalidationPath %q must start with a slash", p)
		}
	}
	switch s.PriceClass {
	case "", "100", "200", "All":
	default:
		return errors.Errorf("PriceClass %q must be one of 100, 200, All", s.PriceClass)
	}
	return nil
}
