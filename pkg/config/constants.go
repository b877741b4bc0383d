package config

// EnvPrefix is the envconfig prefix for all Shoplane variables.
const EnvPrefix = "shoplane"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "SHOPLANE_APP_ENV"
	EnvDBDSN  = "SHOPLANE_DB_DSN"
	EnvDBHost = "SHOPLANE_DB_HOST"
	EnvDBUser = "SHOPLANE_DB_USER"
	EnvDBName = "SHOPLANE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
