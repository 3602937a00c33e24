// Package prefs stores small client preferences in the local state store.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/learnjournal/journal/internal/platform/kv"
)

// ThemeKey is the fixed key the theme is stored under.
const ThemeKey = "journal.theme"

// Theme is the page colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ErrUnknownTheme is returned for values other than light and dark.
var ErrUnknownTheme = errors.New("prefs: theme must be light or dark")

// ParseTheme accepts light or dark in any case.
func ParseTheme(value string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(value))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTheme, value)
	}
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Themes reads and writes the theme preference.
type Themes struct {
	store kv.Store
}

// NewThemes constructs a Themes over store.
func NewThemes(store kv.Store) *Themes {
	return &Themes{store: store}
}

// Get returns the stored theme, light when unset or unreadable.
func (t *Themes) Get(ctx context.Context) Theme {
	raw, err := t.store.Get(ctx, ThemeKey)
	if err != nil {
		return ThemeLight
	}
	theme, err := ParseTheme(string(raw))
	if err != nil {
		return ThemeLight
	}
	return theme
}

// Set stores theme.
func (t *Themes) Set(ctx context.Context, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	if err := t.store.Set(ctx, ThemeKey, []byte(theme)); err != nil {
		return fmt.Errorf("prefs: save theme: %w", err)
	}
	return nil
}
