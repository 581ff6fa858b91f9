package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/bookseek/internal/config"
	"github.com/fyrsmithlabs/bookseek/internal/generation"
	"github.com/fyrsmithlabs/bookseek/internal/retriever"
	"github.com/fyrsmithlabs/bookseek/internal/secrets"
	"github.com/fyrsmithlabs/bookseek/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMessage_Hints(t *testing.T) {
	tests := map[string]struct {
		err  error
		hint string
	}{
		"auth":        {&generation.GenerationFailedError{StatusCode: 401}, "check your API key"},
		"forbidden":   {fmt.Errorf("asking: %w", &generation.GenerationFailedError{StatusCode: 403}), "check your API key"},
		"rate limit":  {&generation.GenerationFailedError{StatusCode: 429}, "rate limiting"},
		"unavailable": {&generation.GenerationFailedError{StatusCode: 502}, "try again later"},
		"missing key": {config.ErrMissingAPIKey, "OPENROUTER_API_KEY"},
		"not ready":   {&NotReadyError{}, "upload and process"},
		"question":    {&retriever.InvalidArgumentError{Name: "question", Value: `""`}, "non-empty question"},
		"timeout":     {fmt.Errorf("generating: %w", context.DeadlineExceeded), "timed out"},
		"dimension":   {fmt.Errorf("retrieving context: %w", &vectorstore.DimensionMismatchError{Want: 384, Got: 1024}), "different embedding model"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			msg := UserMessage(tt.err)
			assert.True(t, strings.HasPrefix(msg, tt.err.Error()))
			assert.Contains(t, msg, "Hint: ")
			assert.Contains(t, msg, tt.hint)
		})
	}
}

func TestUserMessage_NoHint(t *testing.T) {
	err := fmt.Errorf("something odd")
	assert.Equal(t, "something odd", UserMessage(err))
	assert.Empty(t, UserMessage(nil))
}

func TestUserMessage_RedactsKeys(t *testing.T) {
	key := "sk-or-v1-" + strings.Repeat("a1B2", 10)
	err := &generation.GenerationFailedError{
		StatusCode: 401,
		Body:       `{"error":{"message":"invalid key ` + key + `"}}`,
	}

	msg := UserMessage(err)
	assert.NotContains(t, msg, key)
	assert.Contains(t, msg, secrets.DefaultRedaction)
	assert.Contains(t, msg, "check your API key")
}

func TestService_UserMessageRedactsConfiguredKey(t *testing.T) {
	cfg := secrets.DefaultConfig()
	cfg.Literals = []string{"custom-provider-key-42"}
	scrubber, err := secrets.New(cfg)
	require.NoError(t, err)

	f := newFixture(t, func(d *Deps, _ *Config) { d.Scrubber = scrubber })
	msg := f.svc.UserMessage(fmt.Errorf("request with custom-provider-key-42 rejected"))
	assert.NotContains(t, msg, "custom-provider-key-42")
}
