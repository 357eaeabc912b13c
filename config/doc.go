// Package config loads fetchguard settings from a YAML file, an optional
// .env file and the process environment using viper and godotenv, and
// validates them with struct tags.
//
//	settings, err := config.LoadConfig("reddit-scraper")
//	if err != nil {
//		return err
//	}
//	fetchCfg, err := settings.Fetch()
//
// Every key is reachable from the environment by upper-casing it and
// replacing dots with underscores (cache.ttl_seconds is CACHE_TTL_SECONDS).
// The shorter names used by existing deployments, such as CACHE_TTL,
// RATE_LIMIT_REQUESTS and IPROYAL_USERNAME, are accepted as well.
package config
