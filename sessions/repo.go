package sessions

// StorageKey is the key under which the whole session is persisted as a single value.
const StorageKey = "auth"

// Storage is durable key-value persistence that survives process restarts.
// Set must replace the whole value atomically; readers never see a partial write.
type Storage interface {
	// Get returns the stored value and whether the key exists
	Get(key string) (string, bool, error)

	// Set creates or replaces the value for key
	Set(key, value string) error

	// Remove deletes key. Removing a missing key is not an error
	Remove(key string) error
}
