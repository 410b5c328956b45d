package sync

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"go.uber.org/config"
)

type MappingFile struct {
	Name   string
	Reader io.Reader
	Length int
}

type EmbeddedMappings struct {
	Root  string
	Files EmbeddedFS
}

type EmbeddedFS interface {
	Open(name string) (fs.File, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
}

// DirFS serves mapping files from any fs.FS, typically os.DirFS.
type DirFS struct {
	fs.FS
}

func (d DirFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(d.FS, name)
}

func (d DirFS) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(d.FS, name)
}

func (em EmbeddedMappings) MustFindRootMappingFile(filename string) (MappingFile, error) {
	var result MappingFile
	name := path.Join(em.Root, filename)
	contents, err := em.Files.ReadFile(name)
	if err == nil {
		result.Name = name
		result.Reader = bytes.NewReader(contents)
		result.Length = len(contents)
	}
	return result, err
}

func (em EmbeddedMappings) MustFindDefaultsMappingFile() (MappingFile, error) {
	return em.MustFindRootMappingFile("defaults.yaml")
}

// FindMappingDefinitionFiles returns every yaml file under <root>/mappings.
func (em EmbeddedMappings) FindMappingDefinitionFiles() ([]MappingFile, error) {
	var result []MappingFile
	dir := path.Join(em.Root, "mappings")
	files, err := em.Files.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() || !(strings.HasSuffix(file.Name(), ".yaml") || strings.HasSuffix(file.Name(), ".yml")) {
			continue
		}
		mappingFile, err := em.MustFindRootMappingFile(path.Join("mappings", file.Name()))
		if err != nil {
			return nil, err
		}
		result = append(result, mappingFile)
	}
	return result, nil
}

// LoadMappingDefinitions reads and validates every mapping definition file.
func (em EmbeddedMappings) LoadMappingDefinitions() ([]MappingDefinition, error) {
	files, err := em.FindMappingDefinitionFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping files %w", err)
	}
	var result []MappingDefinition
	for _, f := range files {
		def, err := ReadMappingDefinition(f)
		if err != nil {
			return nil, err
		}
		result = append(result, def)
	}
	return result, nil
}

func ReadMappingDefinition(f MappingFile) (MappingDefinition, error) {
	var result MappingDefinition
	yaml, err := config.NewYAML(config.Source(f.Reader))
	if err != nil {
		return result, fmt.Errorf("failed to read mapping file %s %w", f.Name, err)
	}
	if err = yaml.Get(config.Root).Populate(&result); err != nil {
		return result, fmt.Errorf("failed to read mapping file %s %w", f.Name, err)
	}
	if err = result.Validate(); err != nil {
		return result, fmt.Errorf("invalid mapping file %s %w", f.Name, err)
	}
	return result, nil
}
