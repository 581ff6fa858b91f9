// Package secrets redacts API keys and other credentials from text before it
// is shown to the user or written to logs.
//
// Error messages from the answer-generation and embedding endpoints can echo
// request headers or configuration back at the caller. Everything that
// reaches a user-visible surface passes through a Scrubber first.
package secrets
