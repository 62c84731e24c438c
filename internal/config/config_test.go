package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestLoadEditorConfigDefaults(t *testing.T) {
	for _, k := range []string{"BACKEND_URL", "UI_LANGUAGE", "FEEDBACK_TRANSPORT", "REQUEST_TIMEOUT_MS", "PADDING", "TESSERACT_LANGUAGES"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadEditorConfig()
	if err != nil {
		t.Fatalf("LoadEditorConfig: %v", err)
	}
	if cfg.Language != "ru" || cfg.FeedbackTransport != FeedbackHTTP || cfg.RequestTimeoutMs != 30000 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.TesseractLanguages, []string{"rus", "eng"}) {
		t.Errorf("languages = %v", cfg.TesseractLanguages)
	}
}

func TestLoadEditorConfigOverrides(t *testing.T) {
	t.Setenv("UI_LANGUAGE", "en")
	t.Setenv("PADDING", "12.5")
	t.Setenv("FEEDBACK_TRANSPORT", "queue")
	t.Setenv("REQUEST_TIMEOUT_MS", "not-a-number")
	t.Setenv("TESSERACT_LANGUAGES", "eng+deu, fra")

	cfg, err := LoadEditorConfig()
	if err != nil {
		t.Fatalf("LoadEditorConfig: %v", err)
	}
	if cfg.Language != "en" || cfg.Padding != 12.5 || cfg.FeedbackTransport != FeedbackQueue {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RequestTimeoutMs != 30000 {
		t.Errorf("bad int should fall back, got %d", cfg.RequestTimeoutMs)
	}
	if !reflect.DeepEqual(cfg.TesseractLanguages, []string{"eng", "deu", "fra"}) {
		t.Errorf("languages = %v", cfg.TesseractLanguages)
	}
}

func TestEditorConfigValidate(t *testing.T) {
	valid := func() EditorConfig {
		return EditorConfig{BackendURL: "http://b", Language: "ru", RequestTimeoutMs: 1000, FeedbackTransport: FeedbackHTTP}
	}

	tests := []struct {
		name   string
		mutate func(c *EditorConfig)
		want   string
	}{
		{"ok", func(c *EditorConfig) {}, ""},
		{"no backend", func(c *EditorConfig) { c.BackendURL = "" }, "BACKEND_URL"},
		{"language", func(c *EditorConfig) { c.Language = "de" }, "UI_LANGUAGE"},
		{"timeout", func(c *EditorConfig) { c.RequestTimeoutMs = 10 }, "REQUEST_TIMEOUT_MS"},
		{"transport", func(c *EditorConfig) { c.FeedbackTransport = "smtp" }, "FEEDBACK_TRANSPORT"},
		{"queue without redis", func(c *EditorConfig) { c.FeedbackTransport = FeedbackQueue }, "REDIS_URL"},
		{"padding", func(c *EditorConfig) { c.Padding = -1 }, "PADDING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadWorkerConfigRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	defer func() {
		if recover() == nil {
			t.Error("expected panic without DATABASE_URL")
		}
	}()
	LoadWorkerConfig()
}

func TestLoadWorkerConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("WORKER_CONCURRENCY", "200")

	if _, err := LoadWorkerConfig(); err == nil || !strings.Contains(err.Error(), "WORKER_CONCURRENCY") {
		t.Errorf("err = %v", err)
	}

	t.Setenv("WORKER_CONCURRENCY", "8")
	cfg, err := LoadWorkerConfig()
	if err != nil {
		t.Fatalf("LoadWorkerConfig: %v", err)
	}
	if cfg.WorkerConcurrency != 8 || cfg.QdrantCollection != "ocr_block_shapes" {
		t.Errorf("cfg = %+v", cfg)
	}
}
