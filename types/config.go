package types

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
	"text2phenotype.com/svm/logger"
	"text2phenotype.com/svm/ml/svm"
	"text2phenotype.com/svm/utils"
)

const DefaultFolds = 5

// Configuration is a named training setup read from "<name>.yaml".
type Configuration struct {
	Name       string            `yaml:"name" json:"name"`
	FilePath   string            `yaml:"-" json:"file_path"`
	Parameters map[string]string `yaml:"parameters" json:"parameters"`
	Folds      int               `yaml:"folds" json:"folds"`
	Seed       int64             `yaml:"seed" json:"seed"`
}

// Parameter applies overrides on top of the configured options.
func (cfg Configuration) Parameter(overrides map[string]string) (svm.Parameter, error) {
	options := make(map[string]string, len(cfg.Parameters)+len(overrides))
	for k, v := range cfg.Parameters {
		options[strings.ToLower(k)] = v
	}
	for k, v := range overrides {
		options[strings.ToLower(k)] = v
	}
	return svm.ParseOptions(options)
}

func (cfg Configuration) FoldCount() int {
	if cfg.Folds < 2 {
		return DefaultFolds
	}
	return cfg.Folds
}

// SeedOrDefault derives a seed from the configuration name when none is set.
func (cfg Configuration) SeedOrDefault() int64 {
	if cfg.Seed != 0 {
		return cfg.Seed
	}
	return utils.SeedFromString(cfg.Name)
}

type Configurations map[string]Configuration

func (cfgs Configurations) Get(name string) (Configuration, error) {
	cfg, ok := cfgs[name]
	if !ok {
		return Configuration{}, fmt.Errorf("unknown configuration %q", name)
	}
	return cfg, nil
}

func (cfgs Configurations) Names() []string {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func LoadConfiguration(filePath string) (Configuration, error) {
	_, fileName := path.Split(filePath)
	cfg := Configuration{
		Name:     strings.TrimSuffix(fileName, path.Ext(fileName)),
		FilePath: filePath,
	}
	buf, err := ioutil.ReadFile(filePath)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, err
	}
	if _, err := cfg.Parameter(nil); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfigurations reads every yaml file of dirPath. Files that fail to parse
// are logged and skipped.
func LoadConfigurations(dirPath string) (Configurations, error) {
	cfgLogger := logger.NewLogger("LoadConfigurations")

	files, err := ioutil.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	configChan := make(chan Configuration, len(files))
	for _, f := range files {
		// Skip dirs and non-yaml files
		if f.IsDir() || !(strings.HasSuffix(f.Name(), ".yaml") || strings.HasSuffix(f.Name(), ".yml")) {
			continue
		}

		wg.Add(1)
		go func(file os.FileInfo) {
			defer wg.Done()
			cfg, err := LoadConfiguration(path.Join(dirPath, file.Name()))
			if err != nil {
				cfgLogger.Error().Err(err).Str("file", file.Name()).Msg("Skipping configuration")
				return
			}
			configChan <- cfg
		}(f)
	}

	go func() {
		wg.Wait()
		close(configChan)
	}()

	configs := make(Configurations, len(files))
	for cfg := range configChan {
		if prev, ok := configs[cfg.Name]; ok {
			cfgLogger.Warn().Str("name", cfg.Name).Str("file", cfg.FilePath).Str("previous", prev.FilePath).
				Msg("Duplicate configuration name")
			if prev.FilePath < cfg.FilePath {
				continue
			}
		}
		configs[cfg.Name] = cfg
	}
	return configs, nil
}
