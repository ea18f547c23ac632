package encoding

// Serializable is implemented by message values that own their wire
// representation. Deserialize replaces the receiver's contents.
type Serializable interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}
