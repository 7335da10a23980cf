// Package provider selects and constructs the LLM chat-model backend used
// to generate replies. Supported backends: Ollama, OpenAI, Azure OpenAI,
// Ark (Volcano Engine), Google Gemini.
//
// The constructed model is read-only after initialisation and safe to
// share across concurrent calls.
package provider

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects the Volcano Engine Ark runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// OllamaSettings holds Ollama-specific configuration.
type OllamaSettings struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string
	// Model is the Ollama model name.
	Model string
}

// OpenAISettings holds OpenAI-specific configuration.
type OpenAISettings struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the OpenAI model name (default: gpt-4o-mini).
	Model string
}

// AzureSettings holds Azure OpenAI-specific configuration.
type AzureSettings struct {
	// APIKey is the Azure OpenAI API key.
	APIKey string
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string
	// Deployment is the Azure OpenAI deployment name.
	Deployment string
	// APIVersion is the Azure OpenAI REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ArkSettings holds Volcano Engine Ark-specific configuration.
type ArkSettings struct {
	// APIKey is the Ark API key.
	APIKey string
	// Model is the Ark endpoint/model identifier.
	Model string
	// BaseURL overrides the default Ark endpoint.
	BaseURL string
}

// GeminiSettings holds Google Gemini-specific configuration.
type GeminiSettings struct {
	// APIKey is the Google AI Studio API key.
	APIKey string
	// Model is the Gemini model name (default: gemini-1.5-pro).
	Model string
}

// Tuning holds generation parameters shared by all backends. The chat
// pipeline passes fixed values here — they are constants of the core, not
// per-request knobs.
type Tuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Ollama holds Ollama-specific settings.
	Ollama OllamaSettings
	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAISettings
	// Azure holds Azure OpenAI-specific settings.
	Azure AzureSettings
	// Ark holds Volcano Engine Ark-specific settings.
	Ark ArkSettings
	// Gemini holds Google Gemini-specific settings.
	Gemini GeminiSettings

	// Tuning holds shared generation parameters.
	Tuning Tuning
}
