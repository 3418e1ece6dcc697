package detection

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// Placeholder replaces every detected secret.
const Placeholder = "REDACTED"

// Engine finds secrets in free text so they can be scrubbed before the text
// reaches a log line or an error response.
type Engine struct {
	detector *detect.Detector
}

// NewEngine creates a new detection engine with gitleaks initialized.
// An empty configPath loads the gitleaks built-in rule set.
func NewEngine(configPath string) (*Engine, error) {
	// Setup viper to read the rules
	v := viper.New()
	v.SetConfigType("toml")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := v.ReadConfig(strings.NewReader(config.DefaultConfig)); err != nil {
		return nil, fmt.Errorf("failed to read default config: %w", err)
	}

	// Parse into gitleaks config format
	var vc config.ViperConfig
	if err := v.Unmarshal(&vc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Translate to GitLeaks config
	cfg, err := vc.Translate()
	if err != nil {
		return nil, fmt.Errorf("failed to translate config: %w", err)
	}

	return &Engine{
		detector: detect.NewDetector(cfg),
	}, nil
}

// Detect returns one Result per secret found in text.
func (e *Engine) Detect(text string) []Result {
	if e == nil || text == "" {
		return nil
	}

	var results []Result
	for _, f := range e.detector.DetectString(text) {
		results = append(results, Result{
			RuleID:      f.RuleID,
			Description: f.Description,
			secret:      f.Secret,
		})
	}
	return results
}

// Redact returns text with every detected secret replaced by Placeholder.
// A nil engine returns text unchanged.
func (e *Engine) Redact(text string) string {
	for _, res := range e.Detect(text) {
		if res.secret == "" {
			continue
		}
		text = strings.ReplaceAll(text, res.secret, Placeholder)
	}
	return text
}
