package config

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Web    WebConfig    `yaml:"web"`
	Reader ReaderConfig `yaml:"reader"`
	Photo  PhotoConfig  `yaml:"photo"`
}

type ServerConfig struct {
	IP     string `yaml:"ip"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	StaticDir string `yaml:"static_dir"`
}

// AuthLevel selects the strength of chip authentication requested from the engine.
type AuthLevel string

const (
	AuthLevelMin AuthLevel = "Min"
	AuthLevelOpt AuthLevel = "Opt"
	AuthLevelMax AuthLevel = "Max"
)

type ReaderConfig struct {
	// Engine selects the document engine backend; "sim" runs the in-process
	// simulator, anything else is resolved by the bootstrap.
	Engine         string    `yaml:"engine"`
	DeviceName     string    `yaml:"device_name"`
	TimeoutSeconds int       `yaml:"timeout_seconds"`
	IncludePhoto   bool      `yaml:"include_photo"`
	AuthLevel      AuthLevel `yaml:"auth_level"`
}

type PhotoConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`
	MaxWidth       int      `yaml:"max_width"`
	MaxHeight      int      `yaml:"max_height"`
	MaxPixels      int64    `yaml:"max_pixels"`
	AllowedFormats []string `yaml:"allowed_formats"`
}
