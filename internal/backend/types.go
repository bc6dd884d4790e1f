package backend

// Roles for generation messages.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// InlineData is a raw media part sent alongside text (vision input).
type InlineData struct {
	MIMEType string
	Data     []byte
}

// Message is one ordered turn of the prompt handed to the backend.
type Message struct {
	Role   string
	Text   string
	Inline *InlineData
}

// GenerationConfig carries sampling parameters for one generation call.
type GenerationConfig struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
	// RelaxedSafety lowers the block thresholds to the companion defaults.
	RelaxedSafety bool
}

// DefaultGenerationConfig returns the chat sampling defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.9,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 200,
		RelaxedSafety:   true,
	}
}
