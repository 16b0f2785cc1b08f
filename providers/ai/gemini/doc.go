// Package gemini adapts the Google Gemini generateContent API to the
// canonical provider contract: generateContent and streamGenerateContent for
// chat, batchEmbedContents for embeddings. The model travels in the URL path
// rather than the body, and streaming falls back to a JSON array body when
// the endpoint ignores alt=sse, which the auto-sniffing framer absorbs.
package gemini
