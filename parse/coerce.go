package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctrl-q/ctrlq/taskgraph"
)

// Diagnostic names the row and column responsible for a coercion failure,
// as required by §7: "every user-visible failure carries the logical
// entity ... and the validation rule that triggered it."
type Diagnostic struct {
	Row    int
	Column string
	Reason string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("row %d, column %q: %s", d.Row, d.Column, d.Reason)
}

func diag(row int, col Column, reason string) error {
	return Diagnostic{Row: row, Column: headerNames[col], Reason: reason}
}

// coerceInt accepts an optional integer column: "" means absent (0,
// nil), matching §4.4's "Integer columns accept the empty string".
func coerceInt(row int, col Column, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, diag(row, col, "not a valid integer")
	}
	return n, nil
}

// coerceRequiredInt requires a present, parseable integer (grouping keys
// must never be absent).
func coerceRequiredInt(row int, col Column, raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, diag(row, col, "required integer column is empty")
	}
	return coerceInt(row, col, raw)
}

// coerceBool01 accepts "0", "1", or empty (empty = false), per §4.4.
func coerceBool01(row int, col Column, raw string) (bool, error) {
	switch strings.TrimSpace(raw) {
	case "", "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, diag(row, col, `must be "0", "1", or empty`)
	}
}

func coerceTaskKind(row int, raw string) (taskgraph.TaskKind, error) {
	switch raw {
	case "Reload":
		return taskgraph.Reload, nil
	case "External program":
		return taskgraph.ExternalProgram, nil
	default:
		return 0, diag(row, ColTaskType, `must be "Reload" or "External program"`)
	}
}

func coerceEventType(row int, raw string) (string, error) {
	switch raw {
	case "Schema", "Composite":
		return raw, nil
	default:
		return "", diag(row, ColEventType, `must be "Schema" or "Composite"`)
	}
}

func coerceRuleState(row int, raw string) (taskgraph.RuleState, error) {
	switch raw {
	case "TaskSuccessful":
		return taskgraph.TaskSuccessful, nil
	case "TaskFail":
		return taskgraph.TaskFail, nil
	default:
		return 0, diag(row, ColRuleState, `must be "TaskSuccessful" or "TaskFail"`)
	}
}

func coerceIncrementOption(row int, raw string) (taskgraph.IncrementOption, error) {
	switch raw {
	case "once":
		return taskgraph.Once, nil
	case "hourly":
		return taskgraph.Hourly, nil
	case "daily":
		return taskgraph.Daily, nil
	case "weekly":
		return taskgraph.Weekly, nil
	case "monthly":
		return taskgraph.Monthly, nil
	case "custom":
		return taskgraph.Custom, nil
	default:
		return 0, diag(row, ColSchemaIncrementOption, "must be one of once/hourly/daily/weekly/monthly/custom")
	}
}

func coerceDaylightSaving(row int, raw string) (taskgraph.DaylightSavingMode, error) {
	switch raw {
	case "", "observe":
		return taskgraph.Observe, nil
	case "permanentStandard":
		return taskgraph.PermanentStandard, nil
	case "permanentDaylight":
		return taskgraph.PermanentDaylight, nil
	default:
		return 0, diag(row, ColDaylightSavingTime, "must be one of observe/permanentStandard/permanentDaylight")
	}
}

// splitList parses the "a / b / c" list grammar used by Tags/App tags.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitCustomProperties parses the "n=v / n=v" list grammar used by
// Custom properties/App custom properties.
func splitCustomProperties(row int, col Column, raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, entry := range splitList(raw) {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, diag(row, col, "custom property entry must be of the form name=value")
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out, nil
}
