// Package assemble builds the generation request from a retrieval
// result: an instruction preamble, the retrieved passages tagged with
// their sources, and the user query, within a fixed context budget.
package assemble

import (
	"fmt"
	"strings"

	"github.com/civium/ragline/model"
)

// DefaultInstructions is the preamble tuned for municipal-services
// question answering.
const DefaultInstructions = `Based on the following official city information, answer the user's question accurately and helpfully.

Instructions:
1. Provide a clear, accurate answer based only on the context below.
2. If the context contains specific procedures, fees or deadlines, state them exactly.
3. If the context does not fully answer the question, say so clearly.
4. Do not invent information that is not in the context.`

// NoInformationInstructions is used when retrieval produced nothing:
// the model must state that no relevant information was found instead
// of guessing. This is a defined state, not a failure.
const NoInformationInstructions = `No relevant information was found in the document corpus for the user's question. State clearly that you could not find relevant information, and suggest rephrasing the question or consulting the city's official website. Do not invent an answer.`

// Assembler combines retrieved passages and the query into a prompt
// with source attribution.
type Assembler struct {
	// Budget is the maximum total prompt length in characters.
	Budget int
	// Instructions overrides the default preamble when non-empty.
	Instructions string
}

// NewAssembler creates an assembler with the given context budget.
func NewAssembler(budget int) *Assembler {
	return &Assembler{Budget: budget}
}

// Assemble builds the generation request. When the concatenation would
// exceed the budget it drops whole chunks starting from the lowest
// score until it fits, never cutting a chunk's text. The returned
// source list mirrors the chunks actually included, in retrieval
// order, and passes through the downstream model call unmodified.
func (a *Assembler) Assemble(query string, results []*model.RetrievalResult) *model.AnswerContext {
	instructions := a.Instructions
	if instructions == "" {
		instructions = DefaultInstructions
	}

	if len(results) == 0 {
		return &model.AnswerContext{
			Prompt:        fmt.Sprintf("%s\n\nUser question: %s\n\nAnswer:", NoInformationInstructions, query),
			Sources:       []model.Source{},
			NoInformation: true,
		}
	}

	used := a.fitToBudget(query, instructions, results)
	if len(used) == 0 {
		// Budget too small for even the best chunk; same defined
		// no-information state as an empty retrieval.
		return &model.AnswerContext{
			Prompt:        fmt.Sprintf("%s\n\nUser question: %s\n\nAnswer:", NoInformationInstructions, query),
			Sources:       []model.Source{},
			NoInformation: true,
		}
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nContext:\n")
	sources := make([]model.Source, 0, len(used))
	for i, res := range used {
		fmt.Fprintf(&b, "\nSource %d (%s, %s):\n%s\n", i+1, res.Meta.Title, res.Meta.URL, res.Text)
		sources = append(sources, model.Source{
			Title: res.Meta.Title,
			URL:   res.Meta.URL,
			Score: res.Score,
		})
	}
	fmt.Fprintf(&b, "\nUser question: %s\n\nAnswer:", query)

	return &model.AnswerContext{
		Prompt:  b.String(),
		Sources: sources,
	}
}

// fitToBudget drops the lowest-scoring results until the assembled
// prompt fits. Results arrive ordered by descending score, so dropping
// from the tail drops least relevant first.
func (a *Assembler) fitToBudget(query, instructions string, results []*model.RetrievalResult) []*model.RetrievalResult {
	if a.Budget <= 0 {
		return results
	}

	used := results
	for len(used) > 0 && a.promptSize(query, instructions, used) > a.Budget {
		used = used[:len(used)-1]
	}
	return used
}

func (a *Assembler) promptSize(query, instructions string, results []*model.RetrievalResult) int {
	size := len(instructions) + len("\n\nContext:\n") + len(query) + 32
	for i, res := range results {
		size += len(fmt.Sprintf("\nSource %d (%s, %s):\n%s\n", i+1, res.Meta.Title, res.Meta.URL, res.Text))
	}
	return size
}
