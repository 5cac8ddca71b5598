// Package config handles loading and validating the gateway configuration.
//
// Configuration is read from a YAML file over a set of defaults, then
// selectively overridden from ALEXAGW_* environment variables, then
// validated as a whole so every problem is reported at once.
//
// Secrets (token signing secret, OAuth client secret, provider client secret,
// MQTT password) should come from the environment, never the YAML file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
//	fmt.Println(cfg.Gateway.PublicURL)
package config
