// Package config handles loading and validating service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, the pairing secret) should be
//     set via environment variables
//   - The config file should have restricted permissions (0600)
//   - Pairing and JWT secrets must be changed from defaults before
//     production use
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
