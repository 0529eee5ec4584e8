package readapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine"
	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine/sim"
	"github.com/abdrou13-pixel/ReadCard/internal/domain/reader"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/config"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/logging"
	httptransport "github.com/abdrou13-pixel/ReadCard/internal/transport/http"
)

func testScript() sim.Script {
	return sim.Script{
		Devices:     []string{"CR-500"},
		CardPresent: true,
		AuthOK:      true,
		Optical: map[engine.FieldRef]engine.Value{
			{Source: engine.SourceMRZ, ID: engine.FieldMRZText}:        {Text: "IDDZA1234567890"},
			{Source: engine.SourceMRZ, ID: engine.FieldDocumentNumber}: {Text: "CD999"},
		},
		Files: map[engine.ChipFileID]map[engine.FieldRef]engine.Value{
			engine.FilePersonalDetails: {
				{Source: engine.SourceChip, ID: engine.FieldDocumentNumber}: {Text: "AB123"},
			},
			engine.FileGeneralData:     {},
			engine.FileDomesticData:    {},
			engine.FileIssuerDetails:   {},
			engine.FileFace:            {},
			engine.FileSignatureImage:  {},
			engine.FileSecurityObjects: {},
		},
	}
}

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()

	logger, err := logging.New(logging.Config{Level: "error", Dir: t.TempDir(), Filename: "test.log"})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	cfg := config.Default()
	cfg.Server.APIKey = apiKey
	cfg.Web.StaticDir = t.TempDir()

	eng := sim.New(testScript(), logger)
	gw := reader.NewGateway(eng, "CR-500", logger)
	t.Cleanup(gw.Close)
	coordinator := reader.NewCoordinator(reader.Options{
		Engine:       eng,
		Gateway:      gw,
		Logger:       logger,
		Timeout:      5 * time.Second,
		IncludePhoto: true,
	})

	router, err := httptransport.Build(httptransport.Options{
		Config:     cfg,
		Logger:     logger,
		StaticRoot: cfg.Web.StaticDir,
	})
	if err != nil {
		t.Fatalf("router build: %v", err)
	}
	NewService(cfg, coordinator, gw, logger).RegisterRoutes(router)

	srv := httptest.NewServer(router.Engine)
	t.Cleanup(srv.Close)
	return srv
}

func TestReadEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/read", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /read: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body ReadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.OK || body.Code != "success" {
		t.Errorf("ok=%v code=%q", body.OK, body.Code)
	}
	if body.Fields.DocNo != "AB123" {
		t.Errorf("doc_no = %q, want chip value AB123", body.Fields.DocNo)
	}
	if body.Raw.MRZ != "IDDZA1234567890" {
		t.Errorf("mrz = %q", body.Raw.MRZ)
	}
}

func TestReadEndpointRequiresAPIKey(t *testing.T) {
	srv := newTestServer(t, "sekret")

	resp, err := http.Post(srv.URL+"/read", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /read: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/read", nil)
	req.Header.Set("X-API-Key", "sekret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /read with key: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status with key = %d, want 200", resp.StatusCode)
	}
}

func TestReadEndpointBearerToken(t *testing.T) {
	srv := newTestServer(t, "sekret")

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/read", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /read: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestReadEndpointBadBody(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/read", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST /read: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "sekret")

	// Health stays open even with an API key configured.
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body httptransport.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success {
		t.Error("health should report success")
	}
}
