package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GenivalfSilva/Sistema-Compras/internal/storage"
)

// Storage keys. The bare access/refresh keys predate auth_tokens and are
// kept in lockstep for tools that still read them.
const (
	KeyTokens        = "auth_tokens"
	KeyProfile       = "auth_profile"
	KeyLegacyAccess  = "access"
	KeyLegacyRefresh = "refresh"
)

// AuthStorage persists tokens and profile in a string key-value store.
type AuthStorage struct {
	store storage.Store
}

func NewAuthStorage(store storage.Store) *AuthStorage {
	return &AuthStorage{store: store}
}

// SaveTokens writes t under auth_tokens and the legacy keys in one batch. A
// nil t clears all three.
func (a *AuthStorage) SaveTokens(ctx context.Context, t *Tokens) error {
	set, del, err := tokenWrites(t)
	if err != nil {
		return err
	}
	return a.store.SetMany(ctx, set, del...)
}

// Save writes tokens and profile together, so a reader never sees one
// without the other.
func (a *AuthStorage) Save(ctx context.Context, t *Tokens, p *UserProfile) error {
	set, del, err := tokenWrites(t)
	if err != nil {
		return err
	}
	if p == nil {
		del = append(del, KeyProfile)
	} else {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		set[KeyProfile] = string(data)
	}
	return a.store.SetMany(ctx, set, del...)
}

func tokenWrites(t *Tokens) (map[string]string, []string, error) {
	set := make(map[string]string, 4)
	if t == nil {
		return set, []string{KeyTokens, KeyLegacyAccess, KeyLegacyRefresh}, nil
	}

	data, err := json.Marshal(t)
	if err != nil {
		return nil, nil, fmt.Errorf("encode tokens: %w", err)
	}
	set[KeyTokens] = string(data)
	set[KeyLegacyAccess] = t.Access
	if t.Refresh == "" {
		return set, []string{KeyLegacyRefresh}, nil
	}
	set[KeyLegacyRefresh] = t.Refresh
	return set, nil, nil
}

// GetTokens returns the stored tokens or nil. When only the legacy keys are
// present they are read and upgraded to auth_tokens.
func (a *AuthStorage) GetTokens(ctx context.Context) (*Tokens, error) {
	raw, ok, err := a.store.Get(ctx, KeyTokens)
	if err != nil {
		return nil, err
	}
	if ok {
		var t Tokens
		if err := json.Unmarshal([]byte(raw), &t); err == nil && t.Access != "" {
			return &t, nil
		}
	}

	access, ok, err := a.store.Get(ctx, KeyLegacyAccess)
	if err != nil {
		return nil, err
	}
	if !ok || access == "" {
		return nil, nil
	}
	refresh, _, err := a.store.Get(ctx, KeyLegacyRefresh)
	if err != nil {
		return nil, err
	}

	t := &Tokens{Access: access, Refresh: refresh}
	if err := a.SaveTokens(ctx, t); err != nil {
		return nil, fmt.Errorf("upgrade legacy tokens: %w", err)
	}
	return t, nil
}

// SaveProfile stores p. A nil p removes the stored profile.
func (a *AuthStorage) SaveProfile(ctx context.Context, p *UserProfile) error {
	if p == nil {
		return a.store.Delete(ctx, KeyProfile)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return a.store.SetMany(ctx, map[string]string{KeyProfile: string(data)})
}

// GetProfile returns the stored profile, or nil when absent or unreadable.
func (a *AuthStorage) GetProfile(ctx context.Context) (*UserProfile, error) {
	raw, ok, err := a.store.Get(ctx, KeyProfile)
	if err != nil || !ok {
		return nil, err
	}
	var p UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, nil
	}
	return &p, nil
}

// Clear removes tokens and profile together.
func (a *AuthStorage) Clear(ctx context.Context) error {
	return a.store.Delete(ctx, KeyTokens, KeyLegacyAccess, KeyLegacyRefresh, KeyProfile)
}

// IsAuthenticated reports whether an access token is stored.
func (a *AuthStorage) IsAuthenticated(ctx context.Context) bool {
	t, err := a.GetTokens(ctx)
	return err == nil && t != nil
}
