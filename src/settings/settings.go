// Package settings holds the user-editable rewrite actions and provider
// choice, stored as TOML in the data directory.
package settings

import (
	"errors"
	"fmt"
	"strings"
)

const textPlaceholder = "{{text}}"

type Provider struct {
	Name        string `toml:"name"`
	BaseURL     string `toml:"base_url"`
	Model       string `toml:"model"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// Action is one hotkey-bound rewrite.
type Action struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	Hotkey       string `toml:"hotkey"`
	SystemPrompt string `toml:"system_prompt"`
	UserTemplate string `toml:"user_template"`
	OutputRules  string `toml:"output_rules"`
	Enabled      bool   `toml:"enabled"`
}

type Settings struct {
	Enabled             bool     `toml:"enabled"`
	PrivacyMode         bool     `toml:"privacy_mode"`
	CompletedOnboarding bool     `toml:"completed_onboarding"`
	Provider            Provider `toml:"provider"`
	Actions             []Action `toml:"actions"`
}

func Default() Settings {
	return Settings{
		Enabled: true,
		Provider: Provider{
			Name:        "Default",
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o-mini",
			TimeoutSecs: 30,
		},
		Actions: []Action{
			{
				ID:           "default-proofread",
				Name:         "Proofread",
				Hotkey:       "CommandOrControl+Shift+1",
				SystemPrompt: "You are a meticulous proofreader. Fix all spelling, grammar, and punctuation errors. Preserve the original tone and meaning. Only output the corrected text, nothing else.",
				UserTemplate: textPlaceholder,
				OutputRules:  "Output only the corrected text. No explanations.",
				Enabled:      true,
			},
			{
				ID:           "default-rewrite",
				Name:         "Rewrite",
				Hotkey:       "CommandOrControl+Shift+2",
				SystemPrompt: "You are a skilled editor. Rewrite the given text to improve clarity, readability, and flow. Simplify complex sentences, remove ambiguity, and make the meaning immediately clear. Preserve the original intent and information. Only output the rewritten text, nothing else.",
				UserTemplate: textPlaceholder,
				OutputRules:  "Output only the rewritten text. No explanations.",
				Enabled:      true,
			},
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Provider.BaseURL) == "" {
		errs = append(errs, errors.New("provider.base_url is required"))
	}
	if strings.TrimSpace(s.Provider.Model) == "" {
		errs = append(errs, errors.New("provider.model is required"))
	}
	if s.Provider.TimeoutSecs < 0 {
		errs = append(errs, errors.New("provider.timeout_secs must not be negative"))
	}
	seenID := map[string]bool{}
	seenHotkey := map[string]string{}
	for i, a := range s.Actions {
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("actions[%d]: id is required", i))
			continue
		}
		if seenID[a.ID] {
			errs = append(errs, fmt.Errorf("actions[%d]: duplicate id %q", i, a.ID))
		}
		seenID[a.ID] = true
		if a.Enabled && a.Hotkey != "" {
			key := strings.ToLower(a.Hotkey)
			if other, ok := seenHotkey[key]; ok {
				errs = append(errs, fmt.Errorf("actions[%d]: hotkey %q already used by %q", i, a.Hotkey, other))
			}
			seenHotkey[key] = a.ID
		}
	}
	return errors.Join(errs...)
}

// Action looks an action up by id.
func (s Settings) Action(id string) (Action, bool) {
	for _, a := range s.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// EnabledActions returns the actions that should have hotkeys registered.
func (s Settings) EnabledActions() []Action {
	var out []Action
	for _, a := range s.Actions {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// RenderPrompt builds the system and user prompts for text. Output rules are
// appended to the system prompt; an empty template sends text unchanged.
func (a Action) RenderPrompt(text string) (system, user string) {
	system = strings.TrimSpace(a.SystemPrompt)
	if rules := strings.TrimSpace(a.OutputRules); rules != "" {
		if system != "" {
			system += "\n\n"
		}
		system += rules
	}
	if a.UserTemplate == "" {
		return system, text
	}
	return system, strings.ReplaceAll(a.UserTemplate, textPlaceholder, text)
}

func (s Settings) clone() Settings {
	out := s
	out.Actions = append([]Action(nil), s.Actions...)
	return out
}
