package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorConstant           = "."
	environmentValueSeparatorConstant         = "_"
	readEmbeddedConfigurationTemplateConstant = "read embedded configuration: %w"
	readConfigurationFileTemplateConstant     = "read configuration file %s: %w"
	searchConfigurationTemplateConstant       = "search configuration: %w"
	decodeConfigurationTemplateConstant       = "decode configuration: %w"
	configurationTargetMissingMessageConstant = "configuration target not provided"
)

// ErrConfigurationTargetMissing indicates LoadConfiguration was called without a destination.
var ErrConfigurationTargetMissing = errors.New(configurationTargetMissingMessageConstant)

// LoadedConfiguration describes where the effective configuration came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers defaults, embedded configuration, a configuration
// file, and environment variables, in increasing precedence.
type ConfigurationLoader struct {
	configurationName     string
	configurationType     string
	environmentPrefix     string
	searchPaths           []string
	embeddedConfiguration []byte
	embeddedType          string
}

// NewConfigurationLoader constructs a loader searching searchPaths in order for name.type.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string{}, searchPaths...),
	}
}

// SetEmbeddedConfiguration installs configuration compiled into the binary.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(content []byte, configurationType string) {
	loader.embeddedConfiguration = append([]byte{}, content...)
	loader.embeddedType = configurationType
}

// LoadConfiguration decodes the layered configuration into target. An explicit
// configurationFilePath replaces the search paths.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, target any) (LoadedConfiguration, error) {
	if target == nil {
		return LoadedConfiguration{}, ErrConfigurationTargetMissing
	}

	configuration := viper.New()
	for key, value := range defaultValues {
		configuration.SetDefault(key, value)
	}

	if len(loader.embeddedConfiguration) > 0 {
		configuration.SetConfigType(loader.embeddedType)
		if mergeError := configuration.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(readEmbeddedConfigurationTemplateConstant, mergeError)
		}
	}

	trimmedPath := strings.TrimSpace(configurationFilePath)
	if len(trimmedPath) > 0 {
		configuration.SetConfigFile(trimmedPath)
		if mergeError := configuration.MergeInConfig(); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(readConfigurationFileTemplateConstant, trimmedPath, mergeError)
		}
	} else if len(loader.searchPaths) > 0 {
		configuration.SetConfigName(loader.configurationName)
		configuration.SetConfigType(loader.configurationType)
		for _, searchPath := range loader.searchPaths {
			configuration.AddConfigPath(searchPath)
		}
		if mergeError := configuration.MergeInConfig(); mergeError != nil {
			var notFoundError viper.ConfigFileNotFoundError
			if !errors.As(mergeError, &notFoundError) {
				return LoadedConfiguration{}, fmt.Errorf(searchConfigurationTemplateConstant, mergeError)
			}
		}
	}

	if len(loader.environmentPrefix) > 0 {
		configuration.SetEnvPrefix(loader.environmentPrefix)
	}
	configuration.SetEnvKeyReplacer(strings.NewReplacer(environmentKeySeparatorConstant, environmentValueSeparatorConstant))
	configuration.AutomaticEnv()

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if decodeError := configuration.Unmarshal(target, decodeHook); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(decodeConfigurationTemplateConstant, decodeError)
	}

	return LoadedConfiguration{ConfigFileUsed: configuration.ConfigFileUsed()}, nil
}
