// Package config handles loading and validating FieldPoint Core configuration.
//
// This package manages:
//   - Loading the main configuration from a YAML file
//   - Loading per-device definitions from a devices directory
//   - Overriding with FIELDPOINT_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (broker passwords, tokens) should be set via
//     environment variables rather than committed to config files
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	devices, err := config.LoadDevices(cfg.DevicesDir)
package config
