package loader

import (
	"fmt"
	"os"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/chatsync"
)

// ScriptKind is the only accepted value of the kind field
const ScriptKind = "ChatScript"

// ScriptFile is a scripted conversation loaded from YAML, e.g.
//
//	kind: ChatScript
//	steps:
//	  - send: "Olá"
//	  - wait: 3s
//	  - command: bloquear
type ScriptFile struct {
	Kind  string `json:"kind"`
	Steps []Step `json:"steps"`
}

// Step is exactly one of Send, Command or Wait
type Step struct {
	Send    string `json:"send,omitempty"`
	Command string `json:"command,omitempty"`
	Wait    string `json:"wait,omitempty"`
}

// StepKind tells how a validated step is executed
type StepKind int

const (
	StepSend StepKind = iota
	StepCommand
	StepWait
)

// Action is a validated step
type Action struct {
	Kind    StepKind
	Text    string
	Command chatsync.Command
	Wait    time.Duration
}

// LoadFromFile loads a conversation script from a YAML file
func LoadFromFile(path string) (*ScriptFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a script
func Parse(data []byte) (*ScriptFile, error) {
	var script ScriptFile
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	// Validate Kind field
	if script.Kind == "" {
		return nil, fmt.Errorf("'kind' field is required")
	}
	if script.Kind != ScriptKind {
		return nil, fmt.Errorf("invalid kind '%s', must be '%s'", script.Kind, ScriptKind)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("steps is required and must not be empty")
	}

	if _, err := script.Actions(); err != nil {
		return nil, err
	}
	return &script, nil
}

// Actions converts the steps into executable actions
func (s *ScriptFile) Actions() ([]Action, error) {
	actions := make([]Action, 0, len(s.Steps))
	for i, step := range s.Steps {
		a, err := step.action()
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func (st Step) action() (Action, error) {
	set := 0
	for _, v := range []string{st.Send, st.Command, st.Wait} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set != 1 {
		return Action{}, fmt.Errorf("exactly one of send, command or wait is required")
	}

	switch {
	case st.Send != "":
		return Action{Kind: StepSend, Text: st.Send}, nil
	case st.Command != "":
		cmd := chatsync.ParseCommand(st.Command)
		if cmd == chatsync.CommandUnknown {
			return Action{}, fmt.Errorf("unknown command %q", st.Command)
		}
		return Action{Kind: StepCommand, Command: cmd}, nil
	default:
		d, err := time.ParseDuration(st.Wait)
		if err != nil || d < 0 {
			return Action{}, fmt.Errorf("invalid wait %q", st.Wait)
		}
		return Action{Kind: StepWait, Wait: d}, nil
	}
}
