package gcloud

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	configurationErrorMessageConstant   = "environment configuration error"
	configurationErrorTemplateConstant  = "%s: %s"
	configurationDetailTemplateConstant = "%s (%s)"
	detailPairTemplateConstant          = "%s=%s"
	detailSeparatorConstant             = ", "
)

// ErrConfiguration identifies missing or invalid environment preconditions.
var ErrConfiguration = errors.New(configurationErrorMessageConstant)

// ConfigurationError reports an environment precondition the user must fix.
type ConfigurationError struct {
	Message string
	Detail  map[string]string
}

// Error renders the message followed by any detail pairs.
func (configurationError ConfigurationError) Error() string {
	message := fmt.Sprintf(configurationErrorTemplateConstant, configurationErrorMessageConstant, configurationError.Message)
	if len(configurationError.Detail) == 0 {
		return message
	}

	keys := make([]string, 0, len(configurationError.Detail))
	for key := range configurationError.Detail {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf(detailPairTemplateConstant, key, configurationError.Detail[key]))
	}
	return fmt.Sprintf(configurationDetailTemplateConstant, message, strings.Join(pairs, detailSeparatorConstant))
}

// Unwrap exposes ErrConfiguration.
func (configurationError ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
