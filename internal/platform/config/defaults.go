package config

// Default returns the baseline configuration applied underneath the loaded file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "127.0.0.1",
			Port: 8325,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  "server.log",
		},
		Web: WebConfig{
			StaticDir: "./web",
		},
		Reader: ReaderConfig{
			Engine:         "sim",
			TimeoutSeconds: 25,
			IncludePhoto:   true,
			AuthLevel:      AuthLevelOpt,
		},
		Photo: PhotoConfig{
			MaxFileSize:    5 * 1024 * 1024,
			MaxWidth:       4096,
			MaxHeight:      4096,
			MaxPixels:      16777216,
			AllowedFormats: []string{"jpeg", "jpg", "png", "webp", "jp2"},
		},
	}
}
