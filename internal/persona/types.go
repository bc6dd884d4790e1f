package persona

import "time"

// Default persona values applied when a context has no stored row.
const (
	DefaultName        = "Kohana"
	DefaultAge         = 19
	DefaultGender      = "female"
	DefaultMood        = "cheerful, friendly"
	DefaultBehavior    = "Chats casually like a real person, keeps replies short, and never claims to be a bot."
	DefaultPersonality = "Lives in Tokyo, loves anime, games, and music. Warm and a little playful."
)

// Persona holds the companion settings for one context (a guild, or the
// shared direct-message context).
type Persona struct {
	ContextID          string    `json:"context_id"`
	Name               string    `json:"name"`
	Age                int       `json:"age"`
	Gender             string    `json:"gender"`
	Mood               string    `json:"mood"`
	Behavior           string    `json:"behavior"`
	Personality        string    `json:"personality"`
	CustomInstructions string    `json:"custom_instructions,omitempty"`
	ImageGeneration    bool      `json:"image_generation"`
	WebSearch          bool      `json:"web_search"`
	AllowedChannels    []string  `json:"allowed_channels"`
	CreatedAt          time.Time `json:"created_at,omitzero"`
	UpdatedAt          time.Time `json:"updated_at,omitzero"`
}

// ChannelAllowed reports whether the persona may speak in the channel. An
// empty allow list means every channel is allowed.
func (p Persona) ChannelAllowed(channelID string) bool {
	if len(p.AllowedChannels) == 0 {
		return true
	}
	for _, id := range p.AllowedChannels {
		if id == channelID {
			return true
		}
	}
	return false
}

// Default returns the built-in persona for contextID.
func Default(contextID string) Persona {
	return Persona{
		ContextID:   contextID,
		Name:        DefaultName,
		Age:         DefaultAge,
		Gender:      DefaultGender,
		Mood:        DefaultMood,
		Behavior:    DefaultBehavior,
		Personality: DefaultPersonality,
	}
}

// UpdateRequest is the input for updating a persona; nil fields are left
// untouched.
type UpdateRequest struct {
	Name               *string `json:"name,omitempty"`
	Age                *int    `json:"age,omitempty"`
	Gender             *string `json:"gender,omitempty"`
	Mood               *string `json:"mood,omitempty"`
	Behavior           *string `json:"behavior,omitempty"`
	Personality        *string `json:"personality,omitempty"`
	CustomInstructions *string `json:"custom_instructions,omitempty"`
	ImageGeneration    *bool   `json:"image_generation,omitempty"`
	WebSearch          *bool   `json:"web_search,omitempty"`
}
