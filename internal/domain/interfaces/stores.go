package interfaces

// Storage is a durable, string-only key-value store.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}
