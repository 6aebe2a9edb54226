package config

func LoadFromEnv() (Config, error) {
	return LoadFromEnvWith(nil)
}

// LoadFromEnvWith loads the process environment with overrides taking
// precedence over it.
func LoadFromEnvWith(overrides EnvMap) (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return Load(Layered{overrides, FromEnviron()})
}
