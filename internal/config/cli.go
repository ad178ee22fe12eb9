package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseFlags parses command line flags and returns the config file path
func ParseFlags() (configFile string, generateConfig bool, err error) {
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.BoolVar(&generateConfig, "generate-config", false, "Print an example configuration file and exit")

	help := flag.Bool("help", false, "Show help")

	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	if generateConfig {
		return "", true, nil
	}

	return configFile, false, nil
}

// GenerateExampleConfig writes the default configuration as YAML to w
func GenerateExampleConfig(w io.Writer) error {
	cfg := getDefaultConfig()
	cfg.Auth.StateSecret = "change-me"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	if _, err := fmt.Fprintln(w, "# Environment variables override any setting, with or without the OAUTHREG_ prefix."); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
