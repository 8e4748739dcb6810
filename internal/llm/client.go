// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package llm streams model output from AWS Bedrock so it can be fed,
// chunk by chunk, into a stream format parser.
// Implements: prd010-llm-source R1 (Bedrock client), R4 (error handling);
//
//	docs/ARCHITECTURE § LLM Source.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	defaultTimeout   = 300 * time.Second
	maxRetryAttempts = 3
	baseRetryDelay   = 1 * time.Second
)

// ErrLLMFailure indicates the model call failed (network, auth, rate limit).
var ErrLLMFailure = errors.New("LLM failure")

// Usage counts tokens exchanged with the model.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// StreamResponse is the final accounting of one streamed call.
type StreamResponse struct {
	FullText string
	Usage    Usage
	Retries  int
}

// ClientConfig configures the Bedrock client.
type ClientConfig struct {
	ModelID   string        // Bedrock model ID (required)
	Region    string        // AWS region (required)
	Profile   string        // AWS credential profile (optional, uses default chain if empty)
	Timeout   time.Duration // Request timeout (default 300s)
	MaxTokens int           // Max tokens for the response (default 4096)
}

// BedrockAPI abstracts the Bedrock ConverseStream call for testing.
type BedrockAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Client wraps the AWS Bedrock runtime client.
type Client struct {
	api       BedrockAPI
	modelID   string
	timeout   time.Duration
	maxTokens int
	usage     Usage // Cumulative usage across calls
}

// NewClient creates a Bedrock client from the given configuration using the
// standard credential chain.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("%w: model ID is required", ErrLLMFailure)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: region is required", ErrLLMFailure)
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		awsOpts = append(awsOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS config: %v", ErrLLMFailure, err)
	}

	return NewClientWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewClientWithAPI creates a client with a pre-configured API
// implementation. Used for testing with mock clients.
func NewClientWithAPI(api BedrockAPI, cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Client{
		api:       api,
		modelID:   cfg.ModelID,
		timeout:   timeout,
		maxTokens: maxTokens,
	}
}

// Stream sends one prompt to the model and returns a channel yielding
// response text chunks as they arrive. The StreamResponse arrives on the
// result channel after streaming completes; on failure the token channel is
// closed and the result carries the error.
func (c *Client) Stream(ctx context.Context, system, prompt string) (<-chan string, <-chan *StreamResponse, <-chan error) {
	tokenCh := make(chan string, 64)
	resultCh := make(chan *StreamResponse, 1)
	errCh := make(chan error, 1)

	var systemBlocks []brtypes.SystemContentBlock
	if system != "" {
		systemBlocks = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: system},
		}
	}
	messages := []brtypes.Message{{
		Role: brtypes.ConversationRoleUser,
		Content: []brtypes.ContentBlock{
			&brtypes.ContentBlockMemberText{Value: prompt},
		},
	}}

	go func() {
		defer close(resultCh)
		defer close(errCh)

		response, err := c.sendWithRetry(ctx, systemBlocks, messages, tokenCh)
		if err != nil {
			close(tokenCh)
			errCh <- err
			return
		}

		c.usage.InputTokens += response.Usage.InputTokens
		c.usage.OutputTokens += response.Usage.OutputTokens
		resultCh <- response
	}()

	return tokenCh, resultCh, errCh
}

// CumulativeUsage returns the total token usage across all calls.
func (c *Client) CumulativeUsage() Usage {
	return c.usage
}

// sendWithRetry calls ConverseStream with exponential backoff retry for
// rate limit errors.
func (c *Client) sendWithRetry(ctx context.Context, system []brtypes.SystemContentBlock, messages []brtypes.Message, tokenCh chan<- string) (*StreamResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetryAttempts; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: context cancelled during retry: %v", ErrLLMFailure, ctx.Err())
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)

		input := &bedrockruntime.ConverseStreamInput{
			ModelId:  aws.String(c.modelID),
			System:   system,
			Messages: messages,
			InferenceConfig: &brtypes.InferenceConfiguration{
				MaxTokens: aws.Int32(int32(c.maxTokens)),
			},
		}

		output, err := c.api.ConverseStream(callCtx, input)
		if err != nil {
			cancel()

			var throttle *brtypes.ThrottlingException
			if errors.As(err, &throttle) {
				lastErr = err
				continue
			}

			return nil, c.classifyError(err)
		}

		stream := output.GetStream()
		response := consumeStream(callCtx, stream, tokenCh)
		response.Retries = attempt
		cancel()
		return response, nil
	}

	return nil, fmt.Errorf("%w: rate limited after %d retries: %v", ErrLLMFailure, maxRetryAttempts, lastErr)
}

// classifyError wraps Bedrock errors into ErrLLMFailure with descriptive
// messages.
func (c *Client) classifyError(err error) error {
	var accessDenied *brtypes.AccessDeniedException
	if errors.As(err, &accessDenied) {
		return fmt.Errorf("%w: credential or permission issue: %v", ErrLLMFailure, err)
	}

	var notFound *brtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: model not found: %s", ErrLLMFailure, c.modelID)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out after %s", ErrLLMFailure, c.timeout)
	}

	return fmt.Errorf("%w: %v", ErrLLMFailure, err)
}
