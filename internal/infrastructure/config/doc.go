// Package config handles loading and validating the bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (PORT, PORTAO_*)
//   - Validation of required fields
//   - Default value handling
//
// Every integration beyond the command relay and status broadcaster
// (database, mqtt, influxdb, security.jwt) is off by default, so an empty
// file or no file at all yields a working bridge for 192.168.10.10.
//
// Secrets (MQTT password, InfluxDB token, JWT secret) should be set via
// environment variables rather than in the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.Address)
package config
