// Package util holds the flag, environment and configuration helpers shared by the
// stackv commands. Flags are bound to viper, every flag can also be set as environment
// variable with the prefix STACKV_ (e.g. STACKV_DATA_DIR), .env and .env.local are loaded
// on startup.
package util
