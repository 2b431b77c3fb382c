package config

import "path/filepath"

type AppConfig struct {
	RuntimePath string `env:"TUSKMEM_RUNTIME_PATH" envDefault:".tuskmem"`
	DBPath      string `env:"TUSKMEM_DB_PATH"`

	// Attribution written on every captured item
	ProcessID     string `env:"TUSKMEM_PROCESS_ID" envDefault:"tuskmem"`
	UserEntityID  string `env:"TUSKMEM_USER_ENTITY_ID" envDefault:"user"`
	AgentEntityID string `env:"TUSKMEM_AGENT_ENTITY_ID" envDefault:"agent"`
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.RuntimePath, "memory.db")
}

func (c AppConfig) GetEnvPath() string {
	return filepath.Join(c.RuntimePath, ".env")
}
