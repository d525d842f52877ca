// Package config loads service and test-suite configuration.
//
// Values come from an optional YAML file, an optional .env file and the
// process environment, in increasing order of precedence. Environment keys
// are matched against nested struct keys by trying every split of the
// underscore-separated name, so DATABASE_URL fills `database_url` and
// POSTGRES_IMAGE fills `postgres.image`.
//
// # Usage
//
//	var cfg testdb.Config
//	err := config.Load("dbsnap", &cfg)
package config
