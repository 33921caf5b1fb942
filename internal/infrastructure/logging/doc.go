// Package logging builds the service's structured logger on log/slog.
//
// Every record carries service=devicelabel and the build version. The
// format is JSON unless logging.format is "text":
//
//	logging:
//	  level: info    # debug, info, warn, error
//	  format: json   # json, text
//	  output: stdout # stdout, stderr
//
// Subsystems get a tagged child logger instead of building their own:
//
//	log := logging.New(cfg.Logging, version)
//	syncer.SetLogger(log.Component("inventory"))
//	log.Tenant("conn-acme").Info("inventory synced", "devices", 42)
//
// Meraki API keys and JWT secrets must never be logged in full; use
// RedactKey when a key has to be identified.
package logging
