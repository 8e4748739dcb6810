// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	events chan brtypes.ConverseStreamOutput
}

func (f *fakeStream) Events() <-chan brtypes.ConverseStreamOutput { return f.events }
func (f *fakeStream) Close() error                                { return nil }
func (f *fakeStream) Err() error                                  { return nil }

func TestConsumeStream_DeliversDeltasAndUsage(t *testing.T) {
	fs := &fakeStream{events: make(chan brtypes.ConverseStreamOutput, 8)}
	fs.events <- &brtypes.ConverseStreamOutputMemberContentBlockDelta{
		Value: brtypes.ContentBlockDeltaEvent{
			Delta: &brtypes.ContentBlockDeltaMemberText{Value: "hel"},
		},
	}
	fs.events <- &brtypes.ConverseStreamOutputMemberContentBlockDelta{
		Value: brtypes.ContentBlockDeltaEvent{
			Delta: &brtypes.ContentBlockDeltaMemberText{Value: "lo"},
		},
	}
	fs.events <- &brtypes.ConverseStreamOutputMemberMetadata{
		Value: brtypes.ConverseStreamMetadataEvent{
			Usage: &brtypes.TokenUsage{
				InputTokens:  aws.Int32(10),
				OutputTokens: aws.Int32(2),
			},
		},
	}
	close(fs.events)

	tokenCh := make(chan string, 8)
	resp := consumeStream(context.Background(), fs, tokenCh)

	var got []string
	for tok := range tokenCh {
		got = append(got, tok)
	}
	assert.Equal(t, []string{"hel", "lo"}, got)
	assert.Equal(t, "hello", resp.FullText)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 2, resp.Usage.OutputTokens)
}

func TestConsumeStream_ContextCancelledReturnsPartial(t *testing.T) {
	fs := &fakeStream{events: make(chan brtypes.ConverseStreamOutput, 8)}
	fs.events <- &brtypes.ConverseStreamOutputMemberContentBlockDelta{
		Value: brtypes.ContentBlockDeltaEvent{
			Delta: &brtypes.ContentBlockDeltaMemberText{Value: "partial"},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	tokenCh := make(chan string, 8)

	// Cancel after the first delta is buffered; the stream never closes.
	go func() {
		for range tokenCh {
			cancel()
		}
	}()

	resp := consumeStream(ctx, fs, tokenCh)
	assert.Equal(t, "partial", resp.FullText)
}

type erroringAPI struct {
	err error
}

func (a erroringAPI) ConverseStream(context.Context, *bedrockruntime.ConverseStreamInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, a.err
}

func TestStream_ErrorsAreClassified(t *testing.T) {
	c := NewClientWithAPI(erroringAPI{err: &brtypes.AccessDeniedException{}}, ClientConfig{ModelID: "m"})

	tokenCh, _, errCh := c.Stream(context.Background(), "", "prompt")
	for range tokenCh {
	}
	err := <-errCh
	require.ErrorIs(t, err, ErrLLMFailure)
	assert.Contains(t, err.Error(), "credential or permission")
}

func TestClassifyError_ModelNotFound(t *testing.T) {
	c := NewClientWithAPI(nil, ClientConfig{ModelID: "missing-model"})
	err := c.classifyError(&brtypes.ResourceNotFoundException{})
	require.ErrorIs(t, err, ErrLLMFailure)
	assert.Contains(t, err.Error(), "missing-model")
}

func TestNewClient_RequiresModelAndRegion(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrLLMFailure)

	_, err = NewClient(context.Background(), ClientConfig{ModelID: "m"})
	assert.ErrorIs(t, err, ErrLLMFailure)
}

func TestNewClientWithAPI_Defaults(t *testing.T) {
	c := NewClientWithAPI(nil, ClientConfig{ModelID: "m"})
	assert.Equal(t, defaultTimeout, c.timeout)
	assert.Equal(t, 4096, c.maxTokens)
}

func TestStream_ThrottlingGivesUpAfterRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps for several seconds")
	}
	var throttled error = &brtypes.ThrottlingException{}
	c := NewClientWithAPI(erroringAPI{err: throttled}, ClientConfig{ModelID: "m"})

	tokenCh, _, errCh := c.Stream(context.Background(), "", "prompt")
	for range tokenCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLLMFailure))
	assert.Contains(t, err.Error(), "rate limited")
}
