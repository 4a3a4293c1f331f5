// Package main is the entry point for the chat Lambda function. It accepts
// direct invocations ({"text", "lang"}), Lambda Function URL requests and
// warmup events.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/aarogya/pkg/app"
	"github.com/dasmlab/aarogya/pkg/config"
	"github.com/dasmlab/aarogya/pkg/service"
)

func main() {
	h := newHandler(func(ctx context.Context) (*app.App, error) {
		cfg, _, err := config.Load("")
		if err != nil {
			return nil, err
		}
		// Translator functions are invoked per direction; the chat function
		// itself never spawns local workers.
		if cfg.Translate.Engine == "python" {
			cfg.Translate.Engine = "lambda"
		}
		logger := app.NewLogger(cfg.LogLevel, "json")
		return app.New(ctx, cfg, logger)
	})
	lambda.Start(h.handleRequest)
}

// handler builds the pipeline once per execution environment and reuses it
// across invocations. A failed build is retried on the next invocation.
type handler struct {
	build func(ctx context.Context) (*app.App, error)

	mu  sync.Mutex
	app *app.App

	invoker selfInvoker
}

func newHandler(build func(ctx context.Context) (*app.App, error)) *handler {
	return &handler{build: build}
}

func (h *handler) pipeline(ctx context.Context) (*app.App, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.app != nil {
		return h.app, nil
	}
	a, err := h.build(ctx)
	if err != nil {
		return nil, err
	}
	h.app = a
	return a, nil
}

// chatEvent is a direct invocation payload.
type chatEvent struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// httpProbe detects Function URL and API Gateway v2 events.
type httpProbe struct {
	RequestContext json.RawMessage `json:"requestContext"`
}

func (h *handler) handleRequest(ctx context.Context, event json.RawMessage) (interface{}, error) {
	// Warmup detection (MUST be first - before any other processing)
	if warmup, ok := IsWarmupEvent(event); ok {
		return h.handleWarmup(ctx, warmup)
	}

	a, err := h.pipeline(ctx)
	if err != nil {
		return nil, err
	}

	var probe httpProbe
	if err := json.Unmarshal(event, &probe); err == nil && len(probe.RequestContext) > 0 {
		var req events.LambdaFunctionURLRequest
		if err := json.Unmarshal(event, &req); err != nil {
			return nil, err
		}
		return handleHTTP(ctx, a, req), nil
	}

	var req chatEvent
	if err := json.Unmarshal(event, &req); err != nil {
		return nil, err
	}
	return handleDirect(ctx, a, req), nil
}

// handleDirect answers a direct invocation with the response body.
func handleDirect(ctx context.Context, a *app.App, req chatEvent) map[string]interface{} {
	requestID := uuid.NewString()
	a.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"lang":       req.Lang,
	}).Info("[Lambda] Chat invocation received")

	result, err := a.Orchestrator.Chat(ctx, service.ChatRequest{Text: req.Text, Lang: req.Lang})
	if err != nil {
		return service.ValidationBody(err)
	}
	return service.ResponseBody(result)
}

// handleHTTP answers a Function URL request with the same status codes as
// the HTTP server.
func handleHTTP(ctx context.Context, a *app.App, req events.LambdaFunctionURLRequest) events.LambdaFunctionURLResponse {
	requestID := req.Headers["x-request-id"]
	if requestID == "" {
		requestID = uuid.NewString()
	}
	headers := map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, X-Request-ID",
		"X-Request-ID":                 requestID,
	}
	respond := func(status int, body interface{}) events.LambdaFunctionURLResponse {
		data, err := json.Marshal(body)
		if err != nil {
			status = http.StatusInternalServerError
			data = []byte(`{"ok":false,"error":"encode response"}`)
		}
		return events.LambdaFunctionURLResponse{StatusCode: status, Headers: headers, Body: string(data)}
	}

	switch req.RequestContext.HTTP.Method {
	case http.MethodOptions:
		return events.LambdaFunctionURLResponse{StatusCode: http.StatusNoContent, Headers: headers}
	case http.MethodGet:
		translators := []string{}
		for _, d := range a.Registry.Loaded() {
			translators = append(translators, d.String())
		}
		return respond(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"langs":       a.Catalog.Languages(),
			"translators": translators,
		})
	case http.MethodPost:
	default:
		return respond(http.StatusMethodNotAllowed, map[string]interface{}{"error": "Method not allowed"})
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return respond(http.StatusBadRequest, map[string]interface{}{"error": "Invalid JSON body"})
		}
		body = decoded
	}
	var chat chatEvent
	if err := json.Unmarshal(body, &chat); err != nil {
		return respond(http.StatusBadRequest, map[string]interface{}{"error": "Invalid JSON body"})
	}

	logger := a.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"lang":       chat.Lang,
	})

	result, err := a.Orchestrator.Chat(ctx, service.ChatRequest{Text: chat.Text, Lang: chat.Lang})
	if err != nil {
		if !errors.Is(err, service.ErrValidation) {
			logger.WithError(err).Error("[Lambda] Unexpected chat error")
		}
		return respond(http.StatusBadRequest, service.ValidationBody(err))
	}

	status := http.StatusOK
	if result.Outcome == service.HardFailure {
		status = http.StatusInternalServerError
	}
	logger.WithField("outcome", result.Outcome.String()).Info("[Lambda] Chat request handled")
	return respond(status, service.ResponseBody(result))
}
