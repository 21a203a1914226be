package core

import "apt-archive/internal/types"

// ValidateBatch checks every requested item, in request order, against the
// rules below and the registry. Each item reports only the first rule it
// breaks. Fail-fast stops at the first offending item; fail-complete scans
// the whole batch.
func ValidateBatch(registry *Registry, requested []types.RepositoryDefinition, mode types.ValidationMode) error {
	var violations []ValidationViolation
	for _, item := range requested {
		kind, ok := checkItem(registry, item)
		if ok {
			continue
		}
		violations = append(violations, ValidationViolation{Kind: kind, Repository: item.Name})
		if mode != types.ValidationModeFailComplete {
			break
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{
		Kind:       violations[0].Kind,
		Repository: violations[0].Repository,
		Violations: violations,
	}
}

func checkItem(registry *Registry, item types.RepositoryDefinition) (types.ErrorKind, bool) {
	if len(item.Architectures) == 0 {
		return types.ErrorKindEmptyArchitectures, false
	}
	if len(item.Components) == 0 {
		return types.ErrorKindEmptyComponents, false
	}
	if _, ok := registry.Lookup(item.Name); !ok {
		return types.ErrorKindUnknownRepository, false
	}
	return "", true
}

// ParseValidationMode accepts the long and short spellings. An empty value
// yields fallback.
func ParseValidationMode(value string, fallback types.ValidationMode) (types.ValidationMode, bool) {
	switch value {
	case "":
		return fallback, true
	case string(types.ValidationModeFailFast), "fast":
		return types.ValidationModeFailFast, true
	case string(types.ValidationModeFailComplete), "complete":
		return types.ValidationModeFailComplete, true
	default:
		return "", false
	}
}
