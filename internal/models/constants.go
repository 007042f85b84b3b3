package models

const (
	// FallbackAnswer is the sentence the model is told to emit when the
	// retrieved context does not contain the answer.
	FallbackAnswer   = "The answer is not available in the provided context."
	ContextSeparator = "\n"
)

var (
	AnswerPromptTemplate = `You are a helpful AI assistant. Use the context below to answer the user's question accurately.

Context:
%s

Question:
%s

Answer only using the provided context. If the answer is not available in the provided context, say:
"` + FallbackAnswer + `"`
)
