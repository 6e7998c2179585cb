package openai

// Config contains OpenAI provider configuration.
// All fields map to OpenAI SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds)
//
// SDK-level retries stay disabled: the execution engine owns the
// retry/fallback policy.
type Config struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string `env:"OPENAI_MODEL"    envDefault:"gpt-4-turbo"`
	Timeout int    `env:"OPENAI_TIMEOUT"  envDefault:"60"`
}
