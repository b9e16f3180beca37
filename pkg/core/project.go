package core

// DatabaseConfig describes one configured database a model may target.
type DatabaseConfig struct {
	Type     string            `koanf:"type" json:"type"` // duckdb, postgres
	Path     string            `koanf:"path" json:"path,omitempty"`
	Host     string            `koanf:"host" json:"host,omitempty"`
	Port     int               `koanf:"port" json:"port,omitempty"`
	Database string            `koanf:"database" json:"database,omitempty"`
	User     string            `koanf:"user" json:"user,omitempty"`
	Password string            `koanf:"password" json:"-"`
	Schema   string            `koanf:"schema" json:"schema,omitempty"`
	Options  map[string]string `koanf:"options" json:"options,omitempty"`
	Params   map[string]any    `koanf:"params" json:"params,omitempty"`
}

// AdapterConfig converts the database configuration to adapter connection settings.
func (c DatabaseConfig) AdapterConfig() AdapterConfig {
	return AdapterConfig{
		Type:     c.Type,
		Path:     c.Path,
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		Username: c.User,
		Password: c.Password,
		Schema:   c.Schema,
		Options:  c.Options,
		Params:   c.Params,
	}
}

// Document file names inside a project's semantics directory.
const (
	SemanticModelFile = "semantic_model.yml"
	BusinessRulesFile = "business_rules.yml"
)
