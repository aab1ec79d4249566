package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v2"

	"github.com/assetfs/assetfs/internal/metrics"
	"github.com/assetfs/assetfs/internal/vfs"
	"github.com/assetfs/assetfs/pkg/errors"
	"github.com/assetfs/assetfs/pkg/utils"
)

const (
	configFileName = "assetfs.yaml"

	// Directory names under the data root. Discovery falls back to these
	// exact names when case folding finds nothing.
	baseDataDir  = "data"
	tilecacheDir = "tilecache"
	mapsDir      = "maps"

	// localCurrentDir is created inside the config folder and becomes the
	// process working directory, so temporary files land there.
	localCurrentDir = "tmp"
)

// Configuration is the on-disk YAML configuration.
type Configuration struct {
	// DataDir is the root directory holding the application's binary data.
	DataDir string `yaml:"data_dir"`

	// LogLevel controls the access layer's logger (debug/info/warn/error).
	LogLevel string `yaml:"log_level"`

	// CaseSensitive overrides the platform case-sensitivity probe when set.
	CaseSensitive *bool `yaml:"case_sensitive,omitempty"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics metrics.Config `yaml:"metrics"`
}

// Paths holds the resolved process-wide root paths. It is built once during
// startup and treated as immutable afterwards.
type Paths struct {
	// ConfigFolder is the per-user configuration directory.
	ConfigFolder string

	// ConfigFile is the configuration file inside ConfigFolder.
	ConfigFile string

	// TmpDir is the working directory for temporary files.
	TmpDir string

	// DataRoot is the configured root of the application's resources.
	DataRoot string

	// DataDir, TilecacheDir and MapsDir are the discovered directories
	// under DataRoot, with their on-disk casing.
	DataDir      string
	TilecacheDir string
	MapsDir      string

	// CaseSensitive reports whether the filesystem needs case folding.
	CaseSensitive bool

	// Config is the loaded configuration file contents.
	Config Configuration
}

// Load establishes the process-wide root directories. It locates the user's
// home directory, creates the configuration folder and its tmp subdirectory,
// makes tmp the current directory, loads the configuration file (writing a
// default one when absent), and discovers the data directories under the
// configured root. appName names the configuration folder ("$HOME/.<appName>"
// on Unix, "$HOME/<appName>" on Windows).
func Load(appName string, log *utils.Logger) (*Paths, error) {
	if log == nil {
		log = utils.DefaultLogger()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.ConfigFailure("unable to locate home directory", err)
	}

	folder := configFolder(home, appName)
	if err := vfs.CreateDir(folder); err != nil {
		return nil, errors.ConfigFailure(fmt.Sprintf("unable to create directory %q", folder), err)
	}

	tmp := utils.JoinPaths(folder, localCurrentDir)
	if err := vfs.CreateDir(tmp); err != nil {
		return nil, errors.ConfigFailure(fmt.Sprintf("unable to create tmp directory %q", tmp), err)
	}
	if err := os.Chdir(tmp); err != nil {
		return nil, errors.ConfigFailure("changing directory failed", err)
	}

	configFile := utils.JoinPaths(folder, configFileName)
	cfg, err := loadOrWriteDefault(configFile, log)
	if err != nil {
		return nil, err
	}

	if cfg.LogLevel != "" {
		if level, lerr := utils.ParseLogLevel(cfg.LogLevel); lerr != nil {
			log.Warn("invalid log_level %q in configuration, keeping current level", cfg.LogLevel)
		} else {
			log.SetLevel(level)
		}
	}

	caseSensitive := vfs.PlatformCaseSensitive()
	if cfg.CaseSensitive != nil {
		caseSensitive = *cfg.CaseSensitive
	}

	paths := &Paths{
		ConfigFolder:  folder,
		ConfigFile:    configFile,
		TmpDir:        tmp,
		DataRoot:      cfg.DataDir,
		CaseSensitive: caseSensitive,
		Config:        cfg,
	}
	paths.discoverDataDirs()

	log.Info("Configuration file:      %q", paths.ConfigFile)
	log.Info("Root resource directory: %q", paths.DataRoot)
	log.Info("Data directory:          %q", paths.DataDir)
	log.Info("Tilecache directory:     %q", paths.TilecacheDir)
	log.Info("Maps directory:          %q", paths.MapsDir)

	return paths, nil
}

// configFolder returns the per-user configuration directory for appName.
func configFolder(home, appName string) string {
	if runtime.GOOS == "windows" {
		return utils.JoinPaths(home, appName)
	}
	return utils.JoinPaths(home, "."+appName)
}

// loadOrWriteDefault reads the configuration file, writing a commented
// default first when the file is missing or unreadable.
func loadOrWriteDefault(path string, log *utils.Logger) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("could not open configuration file %q", path)
		if werr := writeDefaultConfigFile(path); werr != nil {
			return Configuration{}, errors.ConfigFailure("unable to write default configuration", werr)
		}
		log.Warn("please edit %q to point at the binary data", path)
		if data, err = os.ReadFile(path); err != nil {
			return Configuration{}, errors.ConfigFailure("unable to read configuration", err)
		}
	}

	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Configuration{}, errors.ConfigFailure("unable to parse configuration", err)
	}
	return cfg, nil
}

// writeDefaultConfigFile creates a configuration file the user must edit.
func writeDefaultConfigFile(path string) error {
	defaultDataDir := "/some/place/where/the/data/is"
	if runtime.GOOS == "windows" {
		defaultDataDir = `C:\Program Files\Application Data`
	}
	content := fmt.Sprintf(
		"# Tells assetfs where the binary data files are located.\ndata_dir: %s\nlog_level: info\n",
		defaultDataDir)
	return os.WriteFile(path, []byte(content), 0600)
}

// discoverDataDirs finds the actual data, tilecache and maps directories.
// On case-sensitive filesystems the on-disk names may differ in case from
// the expected ones; when they exist under any casing, that casing is used,
// otherwise the lowercased defaults are kept.
func (p *Paths) discoverDataDirs() {
	p.DataDir = utils.JoinPaths(p.DataRoot, baseDataDir)
	if p.CaseSensitive {
		if name, ok := vfs.FindCaseInsensitive(p.DataRoot, baseDataDir, false, true); ok {
			p.DataDir = utils.JoinPaths(p.DataRoot, name)
		}
	}

	p.TilecacheDir = utils.JoinPaths(p.DataDir, tilecacheDir)
	p.MapsDir = utils.JoinPaths(p.DataDir, mapsDir)
	if p.CaseSensitive {
		if name, ok := vfs.FindCaseInsensitive(p.DataDir, tilecacheDir, false, true); ok {
			p.TilecacheDir = utils.JoinPaths(p.DataDir, name)
		}
		if name, ok := vfs.FindCaseInsensitive(p.DataDir, mapsDir, false, true); ok {
			p.MapsDir = utils.JoinPaths(p.DataDir, name)
		}
	}
}
