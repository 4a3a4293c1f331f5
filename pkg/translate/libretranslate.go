package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultLibreTranslateURL is the default base URL for LibreTranslate API.
	DefaultLibreTranslateURL = "http://localhost:5000"
	// DefaultLibreTranslateTimeout is the default timeout for HTTP requests.
	DefaultLibreTranslateTimeout = 2 * time.Minute
)

// LibreTranslateClient is a Handle backed by a self-hosted LibreTranslate server.
type LibreTranslateClient struct {
	direction catalog.Direction
	endpoint  *jsonEndpoint
}

// NewLibreTranslateClient creates a LibreTranslate handle for one direction.
func NewLibreTranslateClient(baseURL string, dir catalog.Direction, logger *logrus.Logger) *LibreTranslateClient {
	if baseURL == "" {
		baseURL = DefaultLibreTranslateURL
	}
	if logger == nil {
		logger = logrus.New()
	}

	entry := logger.WithFields(logrus.Fields{
		"engine":    string(EngineLibreTranslate),
		"direction": dir.String(),
	})
	return &LibreTranslateClient{
		direction: dir,
		endpoint:  newJSONEndpoint(baseURL, DefaultLibreTranslateTimeout, entry),
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

// Translate sends text to LibreTranslate. LibreTranslate has no output cap,
// so maxLength truncates the returned text by runes.
func (c *LibreTranslateClient) Translate(ctx context.Context, text string, maxLength int) (string, error) {
	var out translateResponse
	err := c.endpoint.post(ctx, "/translate", translateRequest{
		Q:      text,
		Source: string(c.direction.Source),
		Target: string(c.direction.Target),
		Format: "text",
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("libretranslate: %s", out.Error)
	}
	return truncateRunes(out.TranslatedText, maxLength), nil
}

// CheckHealth verifies that LibreTranslate is reachable.
func (c *LibreTranslateClient) CheckHealth(ctx context.Context) error {
	if err := c.endpoint.get(ctx, "/languages"); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
