// Package vectorstore provides the persisted vector index behind retrieval.
//
// An Index stores (chunk, embedding, metadata) entries in insertion order and
// answers top-k similarity queries by dot product over normalized vectors.
// Similarity ranking is delegated to an in-memory chromem-go collection; the
// index adds the insertion-order tie-break, content-digest bookkeeping and
// crash-safe persistence.
//
// # Usage
//
//	idx, err := vectorstore.Load(ctx, "vector_dbs/combined_vector_db", vectorstore.Config{}, logger)
//	if errors.Is(err, vectorstore.ErrNotFound) {
//	    idx, err = vectorstore.New(vectorstore.Config{}, logger)
//	}
//	if err != nil {
//	    return err
//	}
//
//	err = idx.Insert(ctx, []vectorstore.Entry{{
//	    Content:   "Paris is the capital of France.",
//	    Embedding: vec,
//	    Metadata:  map[string]string{vectorstore.MetaSource: "geography.pdf"},
//	}})
//
//	hits, err := idx.Search(ctx, queryVec, 3)
//	err = idx.Persist(ctx, "vector_dbs/combined_vector_db")
//
// # Persistence
//
// Persist writes a gob snapshot next to a manifest.json commit record. The
// manifest is replaced atomically, so Load always sees a complete snapshot.
// Load distinguishes a missing snapshot (ErrNotFound) from an unreadable one
// (ErrCorruptIndex); a persisted empty index is valid.
//
// # Concurrency
//
// Insert and Persist are serialized against each other and against Search.
// Searches run concurrently.
package vectorstore
