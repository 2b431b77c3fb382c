package config

import "time"

type CaptureConfig struct {
	Enabled    bool `env:"TUSKMEM_CAPTURE_ENABLED" envDefault:"true"`
	MinChars   int  `env:"TUSKMEM_CAPTURE_MIN_CHARS" envDefault:"16"`
	MaxPerTurn int  `env:"TUSKMEM_CAPTURE_MAX_PER_TURN" envDefault:"5"`
	MaxChars   int  `env:"TUSKMEM_CAPTURE_MAX_CHARS" envDefault:"2000"`

	// Zero disables dedupe
	DedupeWindow   time.Duration `env:"TUSKMEM_DEDUPE_WINDOW" envDefault:"24h"`
	DedupeMaxCheck int           `env:"TUSKMEM_DEDUPE_MAX_CHECK" envDefault:"300"`
}

type RecallConfig struct {
	Enabled bool `env:"TUSKMEM_RECALL_ENABLED" envDefault:"true"`

	ShortTermScan         int `env:"TUSKMEM_SHORT_TERM_SCAN" envDefault:"50"`
	ShortTermMaxMessages  int `env:"TUSKMEM_SHORT_TERM_MAX_MESSAGES" envDefault:"15"`
	ShortTermMaxChars     int `env:"TUSKMEM_SHORT_TERM_MAX_CHARS" envDefault:"2000"`
	ShortTermSnippetChars int `env:"TUSKMEM_SHORT_TERM_SNIPPET_CHARS" envDefault:"300"`

	LongTermMinPrompt    int `env:"TUSKMEM_LONG_TERM_MIN_PROMPT" envDefault:"5"`
	LongTermLimit        int `env:"TUSKMEM_LONG_TERM_LIMIT" envDefault:"3"`
	LongTermSnippetChars int `env:"TUSKMEM_LONG_TERM_SNIPPET_CHARS" envDefault:"500"`
}

type RetentionConfig struct {
	Days          int      `env:"TUSKMEM_RETENTION_DAYS" envDefault:"0"`
	ProtectedTags []string `env:"TUSKMEM_PROTECTED_TAGS" envSeparator:","`
	ScanLimit     int      `env:"TUSKMEM_GC_SCAN_LIMIT" envDefault:"1000"`
}

const (
	SearchModeHybrid  = "hybrid"
	SearchModeLexical = "lexical"
)

type SearchConfig struct {
	Mode           string  `env:"TUSKMEM_SEARCH_MODE" envDefault:"hybrid"`
	Candidates     int     `env:"TUSKMEM_SEARCH_CANDIDATES" envDefault:"20"`
	SemanticWeight float64 `env:"TUSKMEM_SEMANTIC_WEIGHT" envDefault:"0.5"`

	// Either one switches recall to the filtered hybrid search
	EntityID  string `env:"TUSKMEM_SEARCH_ENTITY_ID"`
	ProcessID string `env:"TUSKMEM_SEARCH_PROCESS_ID"`
}

type BackendConfig struct {
	URL        string        `env:"TUSKMEM_EMBED_URL" envDefault:"http://localhost:11434"`
	Model      string        `env:"TUSKMEM_EMBED_MODEL" envDefault:"nomic-embed-text"`
	Timeout    time.Duration `env:"TUSKMEM_EMBED_TIMEOUT" envDefault:"5s"`
	HealthPath string        `env:"TUSKMEM_EMBED_HEALTH_PATH" envDefault:"/api/tags"`
}
