package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"linkscraper/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigLenient()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(sanitize(cfg))
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

// sanitize masks every secret before the config is printed.
func sanitize(cfg *config.Config) *config.Config {
	c := *cfg
	c.LinkedIn.Password = mask(c.LinkedIn.Password)
	if c.LinkedIn.CookiesJSON != "" {
		c.LinkedIn.CookiesJSON = "<set>"
	}
	c.Proxy.Password = mask(c.Proxy.Password)
	if c.Proxy.URL != "" {
		c.Proxy.URL = "<set>"
	}
	c.Storage.Airtable.APIKey = mask(c.Storage.Airtable.APIKey)
	return &c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
