package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"EcosnapAI/pkg/classifier"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func TestHealthReportsClassNames(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	srv := &Server{
		engine:     fiber.New(),
		log:        logger,
		classifier: classifier.New(logger, nil, filepath.Join(t.TempDir(), "head.json")),
	}
	srv.setupHealthCheck()

	resp, err := srv.engine.Test(httptest.NewRequest(http.MethodGet, "/health", nil), 5000)
	if err != nil {
		t.Fatalf("engine.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status         string   `json:"status"`
		ModelLoaded    bool     `json:"model_loaded"`
		SupportedTypes []string `json:"supported_types"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}

	if body.ModelLoaded {
		t.Fatal("model reported as loaded without a backbone")
	}
	if body.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", body.Status)
	}
	if len(body.SupportedTypes) != len(classifier.ClassNames) {
		t.Fatalf("supported_types = %v, want the class list", body.SupportedTypes)
	}
	for i, class := range classifier.ClassNames {
		if body.SupportedTypes[i] != class {
			t.Fatalf("supported_types[%d] = %q, want %q", i, body.SupportedTypes[i], class)
		}
	}
}
