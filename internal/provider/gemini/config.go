package gemini

// Config contains Gemini provider configuration. The API key drives
// availability; the model default favors the long-context family since
// this adapter serves the large-input tier.
type Config struct {
	APIKey string `env:"GEMINI_API_KEY"`
	Model  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-pro"`
}
