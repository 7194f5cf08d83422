package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

// Prompter asks the user for input.
type Prompter interface {
	Input(message, def string, required bool) (string, error)
	Password(message string) (string, error)
	Multiline(message, def string) (string, error)
	Select(message string, options []string, def string) (string, error)
	Confirm(message string, def bool) (bool, error)
}

// surveyPrompter prompts on the terminal.
type surveyPrompter struct{}

func notBlank(val interface{}) error {
	if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
		return fmt.Errorf("a value is required")
	}
	return nil
}

func (surveyPrompter) Input(message, def string, required bool) (string, error) {
	var out string
	prompt := &survey.Input{Message: message, Default: def}
	var opts []survey.AskOpt
	if required {
		opts = append(opts, survey.WithValidator(notBlank))
	}
	if err := survey.AskOne(prompt, &out, opts...); err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (surveyPrompter) Password(message string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Password{Message: message}, &out, survey.WithValidator(survey.Required))
	return out, err
}

func (surveyPrompter) Multiline(message, def string) (string, error) {
	var out string
	prompt := &survey.Multiline{Message: message, Default: def}
	if err := survey.AskOne(prompt, &out, survey.WithValidator(notBlank)); err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (surveyPrompter) Select(message string, options []string, def string) (string, error) {
	var out string
	prompt := &survey.Select{Message: message, Options: options}
	if def != "" {
		prompt.Default = def
	}
	err := survey.AskOne(prompt, &out)
	return out, err
}

func (surveyPrompter) Confirm(message string, def bool) (bool, error) {
	var out bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out)
	return out, err
}
