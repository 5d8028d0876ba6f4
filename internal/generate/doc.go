// Package generate turns prompts into text through a language model.
//
// OpenAIGenerator talks to any OpenAI-compatible chat completion endpoint and
// retries transient HTTP failures (408, 429, 5xx, empty content) with
// exponential backoff that honours Retry-After. GeminiGenerator uses the genai
// SDK and rotates through several API keys when one runs out of quota.
//
// MinutesPrompt and EditPrompt build the two request shapes the pipeline and
// editor need.
package generate
