package rag

import (
	"strings"

	"github.com/hyperjump/atrbot/internal/config"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/tmc/langchaingo/prompts"
)

// Instruction is prepended to every user question.
const Instruction = "Eres un asistente virtual empático y preciso. Responde a las preguntas basándote únicamente en la información de tu base de datos. " +
	"Si no tienes información suficiente, responde: '" + config.Refusal + "' " +
	"Si detectas que el usuario expresa dolor, miedo o ansiedad, responde de manera empática y tranquilizadora."

const questionPrefix = "\n\nPregunta del usuario: "

// contextTemplate stuffs retrieved chunks ahead of the prompt.
var contextTemplate = prompts.NewPromptTemplate(
	"Use the following pieces of context to answer the question at the end. "+
		"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n"+
		"{{.context}}\n\n"+
		"Question: {{.question}}\n"+
		"Helpful Answer:",
	[]string{"context", "question"},
)

// BuildPrompt combines the instruction with the user's question.
func BuildPrompt(question string) string {
	return Instruction + questionPrefix + question
}

// StuffContext renders the final model input from the prompt and the chunks.
func StuffContext(prompt string, chunks []*models.RetrievedChunk) (string, error) {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Chunk != nil {
			parts = append(parts, c.Chunk.Content)
		}
	}
	return contextTemplate.Format(map[string]any{
		"context":  strings.Join(parts, "\n\n"),
		"question": prompt,
	})
}
