package document

// Bytes is a FileSource over data that is already in memory.
type Bytes struct {
	FileName string
	Data     []byte
}

func (b Bytes) Name() string { return b.FileName }

// ReadAll returns a copy, so the registry never aliases the caller's buffer.
func (b Bytes) ReadAll() ([]byte, error) {
	return append([]byte(nil), b.Data...), nil
}
