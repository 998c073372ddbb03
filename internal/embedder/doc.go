// Package embedder turns canonical entity text into vectors.
//
// The same Embedder must build registry entry vectors and query vectors,
// otherwise cosine similarity between them is meaningless. Providers:
//
//   - jina: Jina AI (or any OpenAI-compatible /v1/embeddings endpoint) over HTTP, with retry
//   - openai, ollama: eino embedding components
//   - local: deterministic character-trigram hashing, no network
//
// New builds a provider from Config and wraps it with an LRU cache keyed
// by the SHA-256 of the text:
//
//	emb, err := embedder.New(ctx, embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	v, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
//
// Provider failures wrap ErrProviderFailed. Callers on the resolution path
// treat them as recoverable and fall back to lexical retrieval.
package embedder
