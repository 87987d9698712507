// Package config loads and validates the hc2sync configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a local .env file into the environment
//   - Overriding with HC2SYNC_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Controller and broker passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Controller.Host)
package config
