package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompts holds the user-facing text the chat engine sends to the model and
// shows to the client.
type Prompts struct {
	System          string   `yaml:"system"`
	NoContextAnswer string   `yaml:"no_context_answer"`
	SampleQuestions []string `yaml:"sample_questions"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		System: "You are an assistant that analyzes research papers.\n" +
			"Answer the user's question accurately using only the content of the paper excerpts provided.\n" +
			"Rules:\n" +
			"1. Base every statement on the excerpts; do not use outside knowledge or guess.\n" +
			"2. Mention the page number (and section when known) of the excerpts you rely on.\n" +
			"3. Answer in the language of the question.\n" +
			"4. If the excerpts do not contain the answer, say plainly that the paper does not cover it.",
		NoContextAnswer: "Sorry, no relevant content was found in the document. Try asking a different or more specific question.",
		SampleQuestions: []string{
			"What is the main purpose of this paper?",
			"What methodology does the paper use?",
			"What are the key results?",
			"What limitations does the paper acknowledge?",
			"What future work do the authors propose?",
			"What is the core contribution of this paper?",
			"How is the experimental design set up?",
			"What is the conclusion of the paper?",
		},
	}
}

// LoadPrompts reads a YAML prompts file. An empty path returns the defaults;
// fields missing from the file keep their default value.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("read prompts file: %w", err)
	}
	var fromFile Prompts
	if err := yaml.Unmarshal(b, &fromFile); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts file: %w", err)
	}
	if strings.TrimSpace(fromFile.System) != "" {
		p.System = fromFile.System
	}
	if strings.TrimSpace(fromFile.NoContextAnswer) != "" {
		p.NoContextAnswer = fromFile.NoContextAnswer
	}
	if len(fromFile.SampleQuestions) > 0 {
		p.SampleQuestions = fromFile.SampleQuestions
	}
	return p, nil
}
