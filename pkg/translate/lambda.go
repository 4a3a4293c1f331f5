package translate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/sirupsen/logrus"
)

// DefaultLambdaPrefix names translator functions "<prefix>-<src>-<tgt>".
const DefaultLambdaPrefix = "aarogya-translator"

// LambdaInvoker is the subset of the AWS Lambda client used by LambdaTranslator.
type LambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaTranslator is a Handle that invokes one translator Lambda function
// per direction. Each function hosts the direction's model.
type LambdaTranslator struct {
	client       LambdaInvoker
	functionName string
	direction    catalog.Direction
	model        string
	logger       *logrus.Logger
}

// lambdaRequest is the payload sent to translator functions.
type lambdaRequest struct {
	Text      string `json:"text"`
	Model     string `json:"model,omitempty"`
	MaxLength int    `json:"max_length"`
}

// lambdaResponse is the payload returned by translator functions.
type lambdaResponse struct {
	TranslationText string `json:"translation_text"`
	Error           string `json:"error,omitempty"`
}

// LambdaFunctionName returns the translator function name for dir.
func LambdaFunctionName(prefix string, dir catalog.Direction) string {
	if prefix == "" {
		prefix = DefaultLambdaPrefix
	}
	return fmt.Sprintf("%s-%s-%s", prefix, dir.Source, dir.Target)
}

// NewLambdaTranslator binds a translator function to one direction.
func NewLambdaTranslator(client LambdaInvoker, prefix string, dir catalog.Direction, model string, logger *logrus.Logger) *LambdaTranslator {
	if logger == nil {
		logger = logrus.New()
	}
	return &LambdaTranslator{
		client:       client,
		functionName: LambdaFunctionName(prefix, dir),
		direction:    dir,
		model:        model,
		logger:       logger,
	}
}

// Translate invokes the direction's translator function synchronously.
func (t *LambdaTranslator) Translate(ctx context.Context, text string, maxLength int) (string, error) {
	payload, err := json.Marshal(lambdaRequest{Text: text, Model: t.model, MaxLength: maxLength})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := t.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(t.functionName),
		Payload:      payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke %s: %w", t.functionName, err)
	}

	if result.FunctionError != nil {
		return "", fmt.Errorf("lambda error: %s", *result.FunctionError)
	}

	var resp lambdaResponse
	if err := json.Unmarshal(result.Payload, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("translator error: %s", resp.Error)
	}

	t.logger.WithFields(logrus.Fields{
		"function":  t.functionName,
		"direction": t.direction.String(),
	}).Debug("Lambda translation completed")

	return resp.TranslationText, nil
}
