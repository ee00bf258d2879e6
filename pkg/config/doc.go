// Package config provides configuration structs and environment helpers for simple-stepup.
//
// Structs carry cleanenv tags so binaries can load them in one call:
//
//	var cfg struct {
//	    Database config.DatabaseConfig
//	    OTP      config.OTPConfig
//	    SMS      config.SMSConfig
//	}
//	cleanenv.ReadEnv(&cfg)
//
//	if err := config.Validate(cfg.OTP.Validator(config.IsProduction()), cfg.SMS.Validator()); err != nil {
//	    log.Fatal(err)
//	}
//
// Provider credentials are deliberately absent: they live in per-user notification settings
// and the system_notification_config table, resolved by package settings.
package config
