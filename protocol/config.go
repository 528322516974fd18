package protocol

// EngineConfig bounds the size of requests the enclave accepts.
// A zero limit disables the corresponding check.
type EngineConfig struct {
	// MaxParticipants caps the participant set of a new computation.
	MaxParticipants int `json:"max_participants" yaml:"max_participants"`

	// MaxNameLength caps computation names.
	MaxNameLength int `json:"max_name_length" yaml:"max_name_length"`

	// MaxValueLength caps submitted values.
	MaxValueLength int `json:"max_value_length" yaml:"max_value_length"`

	// MaxMessageLength caps submission commentary.
	MaxMessageLength int `json:"max_message_length" yaml:"max_message_length"`
}

// DefaultEngineConfig returns the limits used when none are configured.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxParticipants:  1024,
		MaxNameLength:    256,
		MaxValueLength:   4096,
		MaxMessageLength: 4096,
	}
}
