// Package memobase implements a long-term memory service for conversational
// agents: it buffers incoming conversation blobs, consolidates them into a
// structured per-user profile plus an append-only event timeline through an
// LLM-mediated pipeline, and composes that memory back into a context pack
// an agent can drop into its next prompt.
//
// # Quick Start
//
//	store, _ := postgres.New(ctx, postgres.Options{ConnString: dsn})
//	coord := redis.New(redis.Options{Addr: "localhost:6379"})
//	gw, _ := llmgateway.New(llmgateway.Config{APIKey: apiKey, Model: "gpt-4o-mini"})
//
//	svc := memobase.New(memobase.Config{
//		Blobs:        store.Blobs(),
//		Profiles:     store.Profiles(),
//		Events:       store.Events(),
//		Buffers:      store.Buffers(),
//		UserStatuses: store.UserStatuses(),
//		Projects:     store.Projects(),
//		Coord:        coord,
//		Cache:        coord.Cache(5 * time.Minute),
//		Gateway:      gw,
//	})
//
//	blobID, _, _ := svc.InsertBlob(ctx, projectID, userID, &blob.Blob{
//		Type: blob.TypeChat,
//		Chat: &blob.Chat{Messages: msgs},
//	}, false)
//	_, _ = svc.Flush(ctx, projectID, userID, blob.TypeChat, true)
//	pack, _ := svc.GetContext(ctx, projectID, userID, composer.Options{MaxTokens: 2000})
//
// # Package layout
//
// project/    project identity and the profile_config YAML document
// blob/       blob types (chat, doc) and normalization
// profile/    profile slot model (topic/sub_topic/content/update_hits)
// event/      append-only event log, embeddings, cosine-similarity search
// userstatus/ secondary append-only per-user typed status records
// buffer/     per-(project,user,type) buffer entries and their status lattice
// tokencount/ tiktoken-backed token accounting shared by buffer/gateway/composer
// llmgateway/ LLM completion and embedding client with retry/breaker/limiter
// prompt/     deterministic parsing of extract/merge/organize/summarize replies
// pipeline/   the five-stage consolidation pipeline (extract..commit)
// scheduler/  distributed lock, per-user queue, background flush worker
// composer/   context pack assembly from profile slots and ranked events
// store/      postgres-backed relational stores and a redis-backed coordinator
// (this package) facade (Config, New, Service) wiring the above into the
//             public API shown above
// cmd/memobase-cli/ operator CLI to preview a composed context pack
//
// # Configuration
//
// memobase-go reads runtime configuration from environment variables (see
// config.Load): substrate connection strings, the LLM provider's API key
// and model name, and default buffer/flush thresholds. Per-project
// overrides come from a profile_config YAML document (see project.Config)
// and are always passed explicitly, never read from a global.
package memobase // import "github.com/memobase-dev/memobase-go"
