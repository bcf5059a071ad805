// Package config handles loading and validating lightrelay configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The Discord token and broker credentials should be set via environment
//     variables (DISCORD_TOKEN, LIGHTRELAY_MQTT_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// The relay can run without any file: DISCORD_TOKEN and BULBS (a
// comma-separated list of bulb addresses) are enough.
//
// Usage:
//
//	cfg, err := config.LoadFromEnvironment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Devices.Addresses)
package config
