package main

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

const (
	// WarmupSource identifies warmup events from CloudWatch
	WarmupSource = "warmup"

	// WarmupDelay ensures instances overlap to create true concurrency
	WarmupDelay = 75 * time.Millisecond
)

// WarmupEvent represents the CloudWatch Event payload for warmup
type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
	// Preload also instantiates every translator direction.
	Preload bool `json:"preload"`
}

// WarmupResponse is the response returned by warmup operations
type WarmupResponse struct {
	Status            string   `json:"status"`
	InstancesWarmed   int      `json:"instancesWarmed"`
	TranslatorsLoaded []string `json:"translatorsLoaded,omitempty"`
}

// selfInvoker is the subset of the Lambda client used for self-invocation.
type selfInvoker interface {
	Invoke(ctx context.Context, params *lambdasdk.InvokeInput, optFns ...func(*lambdasdk.Options)) (*lambdasdk.InvokeOutput, error)
}

// IsWarmupEvent checks if the event is a warmup event
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var warmup WarmupEvent
	if err := json.Unmarshal(event, &warmup); err != nil {
		return nil, false
	}
	if warmup.Source != WarmupSource {
		return nil, false
	}
	if warmup.Concurrency < 0 {
		warmup.Concurrency = 0
	}
	return &warmup, true
}

// handleWarmup builds the pipeline, optionally preloads translators, and
// self-invokes to keep additional instances warm.
func (h *handler) handleWarmup(ctx context.Context, warmup *WarmupEvent) (interface{}, error) {
	instancesWarmed := 1 // This instance counts as 1
	resp := WarmupResponse{Status: "warm"}

	a, err := h.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	if warmup.Preload {
		if err := a.Preload(ctx); err != nil {
			a.Logger.WithError(err).Warn("[Lambda] Warmup preload failed")
		}
	}
	for _, d := range a.Registry.Loaded() {
		resp.TranslatorsLoaded = append(resp.TranslatorsLoaded, d.String())
	}

	if warmup.Concurrency > 0 {
		if err := h.selfInvoke(ctx, warmup.Concurrency); err == nil {
			instancesWarmed += warmup.Concurrency
		} else {
			a.Logger.WithError(err).Warn("[Lambda] Warmup self-invocation failed")
		}
	}

	// Brief delay to ensure instances overlap
	time.Sleep(WarmupDelay)

	resp.InstancesWarmed = instancesWarmed
	return map[string]interface{}{
		"statusCode": 200,
		"body":       resp,
	}, nil
}

// selfInvoke invokes this Lambda function N times asynchronously
// to create additional warm instances.
func (h *handler) selfInvoke(ctx context.Context, count int) error {
	client := h.invoker
	if client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return err
		}
		client = lambdasdk.NewFromConfig(cfg)
	}
	functionName := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")

	// Payload for child invocations (concurrency=0 to prevent infinite loop)
	payload, err := json.Marshal(WarmupEvent{
		Source:      WarmupSource,
		Concurrency: 0,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var invokeErr error
	var errMu sync.Mutex

	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := client.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(functionName),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			if err != nil {
				errMu.Lock()
				if invokeErr == nil {
					invokeErr = err
				}
				errMu.Unlock()
			}
		}()
	}

	wg.Wait()
	return invokeErr
}
