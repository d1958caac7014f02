package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nomagicln/ipogen/pkg/config"
	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/ipo2"
	"github.com/nomagicln/ipogen/pkg/model"
	"github.com/nomagicln/ipogen/pkg/store"
	"github.com/nomagicln/ipogen/pkg/tui/progress"
)

// ErrorFormatter provides user-friendly error messages.
type ErrorFormatter struct{}

// NewErrorFormatter creates a new error formatter.
func NewErrorFormatter() *ErrorFormatter {
	return &ErrorFormatter{}
}

// FormatError formats an error into a user-friendly message.
func (f *ErrorFormatter) FormatError(err error) string {
	return f.FormatErrorWithContext(err, nil)
}

// FormatErrorWithContext formats an error with the names of the saved models
// available for suggestions.
func (f *ErrorFormatter) FormatErrorWithContext(err error, savedModels []string) string {
	if err == nil {
		return ""
	}

	var (
		savedNotFound *config.SavedModelNotFoundError
		pathErr       *config.PathValidationError
		fileNotFound  *model.ModelNotFoundError
		validation    *model.ValidationError
		opNotFound    *model.OperationNotFoundError
	)
	switch {
	case errors.As(err, &savedNotFound):
		return f.formatSavedModelNotFound(savedNotFound, savedModels)
	case errors.As(err, &fileNotFound):
		return f.formatModelFileNotFound(fileNotFound.Path)
	case errors.As(err, &pathErr):
		return f.formatModelFileNotFound(pathErr.Path)
	case errors.As(err, &validation):
		return f.formatValidationError(validation)
	case errors.As(err, &opNotFound):
		return f.formatOperationNotFound(opNotFound)
	case errors.Is(err, generator.ErrUnknownEngine):
		return fmt.Sprintf("Error: %s\n\nAvailable engines: %s", err, strings.Join(generator.EngineNames(), ", "))
	case errors.Is(err, ipo2.ErrPrecondition):
		return f.formatPrecondition(err)
	case errors.Is(err, ipo2.ErrContractViolation):
		return fmt.Sprintf("Error: %s\n\nThis is a bug in the optimizer. Retry with '--engine simple' to get a baseline suite.", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Error: %s\n\nGeneration took longer than the configured timeout.\nRaise 'timeout' in config.yaml or lower the strength.", err)
	case errors.Is(err, progress.ErrInterrupted), errors.Is(err, context.Canceled):
		return "Generation cancelled."
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("Error: %s\n\nTo see cached runs, use:\n  ipogen cache list", err)
	default:
		return fmt.Sprintf("Error: %s", err)
	}
}

func (f *ErrorFormatter) formatSavedModelNotFound(err *config.SavedModelNotFoundError, savedModels []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: Model '%s' is neither a file nor a saved model.\n\n", err.Name)

	if suggestions := f.SuggestSimilarModels(err.Name, savedModels); len(suggestions) > 0 {
		sb.WriteString("Did you mean:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&sb, "  %s\n", suggestion)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("To save a model, use:\n")
	fmt.Fprintf(&sb, "  ipogen model save %s <file>\n\n", err.Name)
	sb.WriteString("To see all saved models, use:\n")
	sb.WriteString("  ipogen model list")
	return sb.String()
}

func (f *ErrorFormatter) formatModelFileNotFound(path string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: Model file '%s' not found.\n\n", path)
	sb.WriteString("Pass a YAML model file or the name of a saved model.\n")
	sb.WriteString("To import a model from an OpenAPI document, use:\n")
	sb.WriteString("  ipogen import-openapi <spec> --operation <id>")
	return sb.String()
}

func (f *ErrorFormatter) formatValidationError(err *model.ValidationError) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n\n", err)

	switch err.Field {
	case "factors", "":
		sb.WriteString("A model needs at least one factor, each with a unique name and levels:\n")
		sb.WriteString("  factors:\n")
		sb.WriteString("    - name: browser\n")
		sb.WriteString("      levels: [chrome, firefox]\n")
	case "strength":
		sb.WriteString("The strength must be between 2 and the number of factors.\n")
	case "engine":
		fmt.Fprintf(&sb, "Available engines: %s\n", strings.Join(generator.EngineNames(), ", "))
	default:
		switch {
		case strings.HasPrefix(err.Field, "constraints"):
			sb.WriteString("Constraints are predicate expressions over factor names, for example:\n")
			sb.WriteString("  Implies(browser == \"safari\", os == \"macos\")\n")
		case strings.HasPrefix(err.Field, "factors"):
			sb.WriteString("Factor names must be unique and levels must be distinct scalar values.\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *ErrorFormatter) formatOperationNotFound(err *model.OperationNotFoundError) string {
	var sb strings.Builder
	if err.OperationID == "" {
		sb.WriteString("Error: An operation id is required.\n\n")
	} else {
		fmt.Fprintf(&sb, "Error: Operation '%s' not found.\n\n", err.OperationID)
	}

	if len(err.Available) == 0 {
		sb.WriteString("The document defines no operations with an operationId.")
		return sb.String()
	}

	if suggestions := f.SuggestSimilarModels(err.OperationID, err.Available); err.OperationID != "" && len(suggestions) > 0 {
		sb.WriteString("Did you mean:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&sb, "  %s\n", suggestion)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Available operations:\n")
	for _, id := range err.Available {
		fmt.Fprintf(&sb, "  %s\n", id)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *ErrorFormatter) formatPrecondition(err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n\n", err)
	sb.WriteString("The ipo2 engine needs at least 2 factors and a strength between 2 and the number of factors.\n")
	sb.WriteString("For a single factor, use:\n")
	sb.WriteString("  ipogen generate <model> --engine simple")
	return sb.String()
}

// SuggestSimilarModels suggests saved model names close to name.
func (f *ErrorFormatter) SuggestSimilarModels(name string, candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}

	var suggestions []string
	nameLower := strings.ToLower(name)

	for _, candidate := range candidates {
		candidateLower := strings.ToLower(candidate)

		if nameLower == candidateLower {
			return []string{candidate}
		}
		if strings.HasPrefix(candidateLower, nameLower) || strings.Contains(candidateLower, nameLower) {
			suggestions = append(suggestions, candidate)
			continue
		}
		if levenshteinDistance(nameLower, candidateLower) <= 2 {
			suggestions = append(suggestions, candidate)
		}
	}
	return suggestions
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
