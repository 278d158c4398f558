package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is read once at startup;
// adapters receive their section and treat it as immutable.
type Config struct {
	Extraction ExtractionConfig `yaml:"extraction"`
	DocStrange DocStrangeConfig `yaml:"docstrange"`
	Nanonets   NanonetsConfig   `yaml:"nanonets"`
	OCR        OCRConfig        `yaml:"ocr"`
	AI         AIConfig         `yaml:"ai"`
	AttemptLog AttemptLogConfig `yaml:"attempt_log"`
}

// ExtractionConfig governs the cascade itself.
type ExtractionConfig struct {
	MaxFileSizeMB int           `yaml:"max_file_size_mb"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	ConfiguredTTL time.Duration `yaml:"configured_ttl"`
}

// DocStrangeConfig configures the layout-aware cloud OCR backend.
type DocStrangeConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NanonetsConfig configures the vendor tabular OCR backend.
type NanonetsConfig struct {
	APIKey  string        `yaml:"api_key"`
	ModelID string        `yaml:"model_id"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// OCRConfig configures the credential-free local extraction backend.
type OCRConfig struct {
	Pdftotext     string `yaml:"pdftotext"`
	Pdftoppm      string `yaml:"pdftoppm"`
	Tesseract     string `yaml:"tesseract"`
	TesseractLang string `yaml:"tesseract_lang"`
	DPI           int    `yaml:"dpi"`
	MaxPages      int    `yaml:"max_pages"`
}

// AIConfig configures the prompt-based extraction backend.
type AIConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AttemptLogConfig enables the sqlite attempt log when Path is set.
// Use ":memory:" for an ephemeral store.
type AttemptLogConfig struct {
	Path string `yaml:"path"`
}

// LoadConfig loads configuration from environment variables, then applies
// an optional YAML overlay when STOCKEX_CONFIG points at a file. The file
// wins over the environment for any key it sets.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Extraction: ExtractionConfig{
			MaxFileSizeMB: getEnvAsInt("STOCKEX_MAX_FILE_SIZE_MB", 50),
			Timeout:       getEnvAsDuration("STOCKEX_TIMEOUT", 60*time.Second),
			MaxAttempts:   getEnvAsInt("STOCKEX_MAX_ATTEMPTS", 3),
			BaseDelay:     getEnvAsDuration("STOCKEX_BASE_DELAY", 500*time.Millisecond),
			ConfiguredTTL: getEnvAsDuration("STOCKEX_CONFIGURED_TTL", 30*time.Second),
		},
		DocStrange: DocStrangeConfig{
			APIKey:  getEnv("DOCSTRANGE_API_KEY", ""),
			BaseURL: getEnv("DOCSTRANGE_BASE_URL", "https://extraction-api.nanonets.com"),
			Timeout: getEnvAsDuration("DOCSTRANGE_TIMEOUT", 45*time.Second),
		},
		Nanonets: NanonetsConfig{
			APIKey:  getEnv("NANONETS_API_KEY", ""),
			ModelID: getEnv("NANONETS_MODEL_ID", ""),
			BaseURL: getEnv("NANONETS_BASE_URL", "https://app.nanonets.com"),
			Timeout: getEnvAsDuration("NANONETS_TIMEOUT", 45*time.Second),
		},
		OCR: OCRConfig{
			Pdftotext:     getEnv("STOCKEX_PDFTOTEXT", "pdftotext"),
			Pdftoppm:      getEnv("STOCKEX_PDFTOPPM", "pdftoppm"),
			Tesseract:     getEnv("STOCKEX_TESSERACT", "tesseract"),
			TesseractLang: getEnv("STOCKEX_TESSERACT_LANG", "eng"),
			DPI:           getEnvAsInt("STOCKEX_OCR_DPI", 300),
			MaxPages:      getEnvAsInt("STOCKEX_OCR_MAX_PAGES", 0),
		},
		AI: AIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		AttemptLog: AttemptLogConfig{
			Path: getEnv("STOCKEX_ATTEMPT_LOG", ""),
		},
	}

	if path := os.Getenv("STOCKEX_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
