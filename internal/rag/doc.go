// Package rag answers questions about ingested documents.
//
// A Service owns the pipeline: documents are split by the chunker, embedded,
// and appended to a vector index that is persisted after every change. A
// question retrieves the most similar chunks, which are formatted into a
// prompt for the answer generator.
//
// State the user sees lives in an explicit Session: whether any documents
// are loaded, and the conversations asked so far. Sessions are created by
// the caller and passed to every operation.
//
//	svc, err := rag.NewService(rag.Deps{
//	    Embedder:  provider,
//	    Index:     idx,
//	    Generator: client,
//	}, cfg)
//	sess := svc.NewSession()
//	if _, err := svc.IngestFiles(ctx, sess, []string{"notes.pdf"}); err != nil {
//	    fmt.Println(rag.UserMessage(err))
//	}
//	ans, err := svc.Answer(ctx, sess, "What is the capital of France?")
//
// Every successful answer is also stored in the index as two chunks, the
// question and the answer, tagged as conversation memory. The retriever caps
// how many of them can appear in one result.
package rag
