package config

import (
	"errors"
	"io/fs"

	"github.com/dmitrijs2005/accounthub/internal/flagx"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv overlays environment variables named by the `env` tags on Config.
// A dotenv file (-env-file, or ./.env when present) is loaded first without
// overriding variables that are already set in the process environment.
// Unset variables leave the current value untouched. A malformed value panics.
func parseEnv(config *Config) {
	loadDotenv()

	if err := cleanenv.ReadEnv(config); err != nil {
		panic(err)
	}
}

func loadDotenv() {
	path := flagx.EnvFileFlag()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	err := godotenv.Load(path)
	if err == nil {
		return
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return
	}
	panic(err)
}
