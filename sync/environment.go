package sync

import (
	"bytes"
	"fmt"
	"os"
)

// ConfigEnvVar may hold a JSON object of values referenced as ${NAME} from
// the yaml configuration, e.g. {"VRIJBRP_API_KEY": "..."}.
const ConfigEnvVar = "ZGW2VRIJBRP_CONFIG"

// configOptions holds optional configuration for LoadConfigFromEnvironment.
type configOptions struct {
	files       []string
	mappingDirs []string
	envVar      string
}

// ConfigOption is a functional option for configuring LoadConfigFromEnvironment.
type ConfigOption func(*configOptions)

// ConfigWithFile layers an operator yaml file over the embedded defaults.
func ConfigWithFile(name string) ConfigOption {
	return func(o *configOptions) {
		if name != "" {
			o.files = append(o.files, name)
		}
	}
}

// ConfigWithMappingsDir adds mapping definitions from a directory on disk.
// The directory is expected to hold a mappings/ folder like the embedded one.
func ConfigWithMappingsDir(dir string) ConfigOption {
	return func(o *configOptions) {
		if dir != "" {
			o.mappingDirs = append(o.mappingDirs, dir)
		}
	}
}

// ConfigWithEnvVar overrides the name of the composite environment variable.
func ConfigWithEnvVar(name string) ConfigOption {
	return func(o *configOptions) {
		o.envVar = name
	}
}

// LoadConfigFromEnvironment reads the embedded defaults, any operator files
// and every mapping definition, expanding ${NAME} references from the
// composite environment variable and then the process environment.
func LoadConfigFromEnvironment(embeddedMappings EmbeddedMappings, opts ...ConfigOption) (Config, []MappingDefinition, error) {
	options := configOptions{envVar: ConfigEnvVar}
	for _, opt := range opts {
		opt(&options)
	}

	defaultsMappingFile, err := embeddedMappings.MustFindDefaultsMappingFile()
	if err != nil {
		return Config{}, nil, fmt.Errorf("failed to read defaults mapping file %w", err)
	}
	sources := []MappingFile{defaultsMappingFile}
	for _, name := range options.files {
		contents, err := os.ReadFile(name)
		if err != nil {
			return Config{}, nil, fmt.Errorf("failed to read config file %w", err)
		}
		sources = append(sources, MappingFile{Name: name, Reader: bytes.NewReader(contents), Length: len(contents)})
	}

	compositeEnvVar := JSONCompositeEnvVar{Parent: options.envVar, Fallback: true}
	result, err := YAMLConfigUnmarshaler{}.Unmarshal(compositeEnvVar, sources...)
	if err != nil {
		return result, nil, fmt.Errorf("failed to load config %w", err)
	}

	mappings, err := embeddedMappings.LoadMappingDefinitions()
	if err != nil {
		return result, nil, err
	}
	for _, dir := range options.mappingDirs {
		extra, err := EmbeddedMappings{Root: ".", Files: DirFS{FS: os.DirFS(dir)}}.LoadMappingDefinitions()
		if err != nil {
			return result, nil, err
		}
		mappings = append(mappings, extra...)
	}
	return result, mappings, nil
}
