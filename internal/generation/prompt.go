package generation

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// contextSeparator joins retrieved chunks into one context block.
const contextSeparator = "\n\n"

const studyAssistantTemplate = `
You are a helpful AI study assistant. Use the following context to answer the user's question accurately and comprehensively.

Context: {{.context}}

Question: {{.question}}

Instructions:
- Provide a clear, detailed answer based on the context
- If the information is not available in the context, say so honestly
- Structure your response in a helpful, educational manner
- Use examples from the context when relevant

Answer:`

var studyAssistantPrompt = prompts.NewPromptTemplate(studyAssistantTemplate, []string{"context", "question"})

// JoinContext concatenates chunk contents into a context block.
func JoinContext(chunks []string) string {
	return strings.Join(chunks, contextSeparator)
}

// BuildPrompt renders the study-assistant prompt for question and context.
func BuildPrompt(question, context string) (string, error) {
	out, err := studyAssistantPrompt.Format(map[string]any{
		"context":  context,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return out, nil
}
