package ports

// Tokenizer mints opaque session tokens
type Tokenizer interface {
	NewSessionToken() (string, error)
}
