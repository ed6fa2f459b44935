// Package validation checks structs against `validate` tags and reports
// failures as INVALID_INPUT errors carrying per-field details.
//
//	type AudioEvent struct {
//	    ConversationID string `validate:"required"`
//	    AudioURI       string `validate:"required,uri"`
//	}
//	err := validation.Validate(ev)
//
// Field names in messages come from the mapstructure tag, then the json tag,
// then the snake_cased Go name, so config and payload errors read the way
// the keys are written.
package validation
