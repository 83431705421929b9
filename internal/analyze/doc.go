// Package analyze extracts emissions figures from filtered report snippets
// using an OpenRouter-compatible chat completions endpoint. Responses are
// requested in JSON mode and decoded with deliberately loose coercion, since
// models frequently return numbers as strings, bare values instead of
// objects, or JSON wrapped in code fences.
package analyze
