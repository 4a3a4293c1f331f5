package translate

import (
	"context"
	"time"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultArgosURL is the default base URL for an Argos Translate HTTP wrapper.
	DefaultArgosURL = "http://127.0.0.1:5000"
	// DefaultArgosTimeout is the default timeout for HTTP requests.
	DefaultArgosTimeout = 30 * time.Second
)

// ArgosClient is a Handle backed by an Argos Translate HTTP service that
// accepts a model name, so each direction runs the model the catalog names.
type ArgosClient struct {
	direction catalog.Direction
	model     string
	endpoint  *jsonEndpoint
}

// NewArgosClient creates an Argos handle for one direction and model.
func NewArgosClient(baseURL string, dir catalog.Direction, model string, logger *logrus.Logger) *ArgosClient {
	if baseURL == "" {
		baseURL = DefaultArgosURL
	}
	if logger == nil {
		logger = logrus.New()
	}

	entry := logger.WithFields(logrus.Fields{
		"engine":    string(EngineArgos),
		"direction": dir.String(),
		"model":     model,
	})
	return &ArgosClient{
		direction: dir,
		model:     model,
		endpoint:  newJSONEndpoint(baseURL, DefaultArgosTimeout, entry),
	}
}

type argosTranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Model      string `json:"model,omitempty"`
	MaxLength  int    `json:"max_length,omitempty"`
}

type argosTranslateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate translates text along the handle's direction. The service
// enforces maxLength itself.
func (c *ArgosClient) Translate(ctx context.Context, text string, maxLength int) (string, error) {
	var out argosTranslateResponse
	err := c.endpoint.post(ctx, "/translate", argosTranslateRequest{
		Text:       text,
		SourceLang: string(c.direction.Source),
		TargetLang: string(c.direction.Target),
		Model:      c.model,
		MaxLength:  maxLength,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.TranslatedText, nil
}
