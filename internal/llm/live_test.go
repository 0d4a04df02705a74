package llm

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

func TestGeminiGenerateLive(t *testing.T) {
	// Reads LLM_API_KEY and optional LLM_MODEL / LLM_ENDPOINT from the environment or a .env file next to this test.
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		t.Logf("%v", eris.Wrap(err, "loading .env file"))
	}

	if os.Getenv("LLM_LIVE_TEST") != "1" {
		t.Skip("live generator test disabled; set LLM_LIVE_TEST=1 to enable")
	}

	apiKey := strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	if apiKey == "" {
		t.Skip("LLM_API_KEY is required for the live generator test")
	}

	generator, err := NewGeminiGenerator(GeminiOptions{
		BaseURL: strings.TrimSpace(os.Getenv("LLM_ENDPOINT")),
		Model:   strings.TrimSpace(os.Getenv("LLM_MODEL")),
		Timeout: time.Minute,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("failed to create live generator: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	result := generator.Generate(ctx, "Write a complete HTML page for the URL: recipes/sourdough-bread", apiKey)
	duration := time.Since(start)
	if !result.OK() {
		t.Fatalf("live generator call failed: %s", result.ErrorMessage())
	}

	preview := result.Content
	const previewLimit = 800
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}

	t.Logf("model %q responded in %s (length=%d)", generator.Model(), duration, len(result.Content))
	t.Logf("HTML preview:\n%s", preview)
}
