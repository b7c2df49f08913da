// Package embedding groups the Embedder adapters.
//
//   - hashing: local feature-hashing vectors, no network, the default
//   - openai: OpenAI embeddings via go-openai
//   - ollama: a local Ollama server
package embedding
