package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

var errNotLoggedIn = errors.New("não autenticado: execute 'compras login'")

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func money(m *model.Money) string {
	if m == nil {
		return "-"
	}
	return m.String()
}

func optionalInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "sim"
	}
	return "não"
}

// render writes v in the structured format selected by --output, or calls
// table when the format is table.
func render(v any, table func()) error {
	done, err := output.Structured(outputFormat, v)
	if done || err != nil {
		return err
	}
	table()
	return nil
}

// resolveStatus matches a status typed by the user against the pipeline,
// ignoring case. "next" picks the only allowed transition from current.
func resolveStatus(raw string, current workflow.Status) (workflow.Status, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "next") {
		allowed := workflow.AllowedTransitions(string(current))
		switch len(allowed) {
		case 0:
			return "", fmt.Errorf("%q is a final status", current)
		case 1:
			return allowed[0], nil
		default:
			return "", fmt.Errorf("more than one status follows %q; choose one of: %s", current, joinStatuses(allowed))
		}
	}
	for _, s := range workflow.Statuses() {
		if strings.EqualFold(string(s), raw) {
			return s, nil
		}
	}
	return workflow.ParseStatus(raw)
}

func joinStatuses(statuses []workflow.Status) string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = strconv.Quote(string(s))
	}
	return strings.Join(names, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
