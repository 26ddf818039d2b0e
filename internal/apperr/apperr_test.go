package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("list solicitations: %w", Wrap(KindNetwork, errors.New("connection refused"), ""))

	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestError_Message(t *testing.T) {
	err := Validation("rejected", map[string][]string{
		"prioridade": {"invalid choice"},
		"descricao":  {"required", "too short"},
	})

	assert.Equal(t,
		"validation_error: rejected; descricao: required, too short; prioridade: invalid choice",
		err.Error())
}

func TestForbidden_NamesPermission(t *testing.T) {
	err := Forbidden("can_approve")

	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "can_approve", err.Permission)
	assert.Contains(t, err.Error(), "can_approve")
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := Wrap(KindNetwork, inner, "login")

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "network_error: login: dial tcp: refused", err.Error())
}
