// Package openai talks to the chat completions API for artwork analysis and
// structured card detail generation. Responses that should be JSON are decoded
// tolerantly since models occasionally wrap payloads in code fences or prose.
package openai
