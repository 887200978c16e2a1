// Package config loads and validates the installer console configuration.
//
// Loading order:
//  1. hard-coded defaults
//  2. YAML file (optional)
//  3. GRAYLOGIC_* environment variables
//
// Secrets (JWT secret, backend token, broker and Redis passwords) should be
// supplied through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/glconsole.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Snapshot.Provider)
package config
