package config

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Inspire: Inspire{
			BaseURL:          "https://inspirehep.net",
			UserAgent:        "inspire-names/0.1.0",
			PageSize:         250,
			RequestDelayMS:   3000,
			TimeoutSeconds:   30,
			MaxAttempts:      3,
			InitialBackoffMS: 1000,
			MaxPages:         0,
		},
		Output: Output{
			Path: "inspire-names.json",
		},
		Redis: Redis{
			CacheTTLSeconds: 6 * 60 * 60,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}
