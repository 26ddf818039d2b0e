package workflow

import (
	"fmt"
	"strings"
)

// Priority is the urgency of a solicitation. Lower rank means more urgent.
type Priority string

const (
	PriorityUrgente Priority = "Urgente"
	PriorityAlta    Priority = "Alta"
	PriorityNormal  Priority = "Normal"
	PriorityBaixa   Priority = "Baixa"
)

var priorities = []Priority{PriorityUrgente, PriorityAlta, PriorityNormal, PriorityBaixa}

// Priorities returns the priority levels from most to least urgent.
func Priorities() []Priority {
	out := make([]Priority, len(priorities))
	copy(out, priorities)
	return out
}

// Rank is the position of p in the priority order, or -1 if unknown.
func (p Priority) Rank() int {
	for i, q := range priorities {
		if q == p {
			return i
		}
	}
	return -1
}

// ParsePriority accepts a priority label, case-insensitively.
func ParsePriority(raw string) (Priority, error) {
	for _, p := range priorities {
		if strings.EqualFold(string(p), strings.TrimSpace(raw)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", raw)
}

// Department requesting the purchase.
type Department string

const (
	DeptManutencao Department = "Manutenção"
	DeptTI         Department = "TI"
	DeptRH         Department = "RH"
	DeptFinanceiro Department = "Financeiro"
	DeptMarketing  Department = "Marketing"
	DeptOperacoes  Department = "Operações"
	DeptOutro      Department = "Outro"
)

var departments = []Department{
	DeptManutencao, DeptTI, DeptRH, DeptFinanceiro, DeptMarketing, DeptOperacoes, DeptOutro,
}

// Departments returns every known department.
func Departments() []Department {
	out := make([]Department, len(departments))
	copy(out, departments)
	return out
}

// ParseDepartment accepts a department label, case-insensitively.
func ParseDepartment(raw string) (Department, error) {
	for _, d := range departments {
		if strings.EqualFold(string(d), strings.TrimSpace(raw)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown department %q", raw)
}
