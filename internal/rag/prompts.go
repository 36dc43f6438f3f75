package rag

import (
	"fmt"
	"strings"
)

// InsufficientContextAnswer is returned when nothing relevant was retrieved.
const InsufficientContextAnswer = "I don't have enough information in this document to answer that question."

const rephraseInstruction = "Given the above conversation, generate a search query to look up in order to get information relevant to the conversation. Reply with the search query only."

const answerInstruction = `Answer the user's questions based only on the context below.
If the context does not contain the information needed to answer, say that you don't have enough information in this document to answer. Do not make up an answer.

Context:
%s`

func buildAnswerSystem(chunks []ScoredChunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[page %d]\n%s", c.Page, strings.TrimSpace(c.Text))
	}
	return fmt.Sprintf(answerInstruction, sb.String())
}

func buildRephrasePrompt(question string) string {
	return question + "\n\n" + rephraseInstruction
}
