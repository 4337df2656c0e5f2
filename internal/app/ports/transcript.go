package ports

// Transcript appends one JSON document per completed step.
type Transcript interface {
	Write(v any) error
}
