package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// BOUTIQUE_ tags so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "BOUTIQUE_DB_DSN"
	EnvDBHost = "BOUTIQUE_DB_HOST"
	EnvDBUser = "BOUTIQUE_DB_USER"
	EnvDBName = "BOUTIQUE_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
