package config

const (
	EnvPrefix = ""

	AppEnvDev     = "development"
	AppEnvStaging = "staging"
	AppEnvProd    = "production"
)
