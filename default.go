package kved

import (
	"io"

	"github.com/kved-go/kved/codec"
)

// defaultEngine backs the package-level convenience wrappers below. It
// is nil until SetDefault is called; every wrapper returns ErrNotStarted
// in that case, same as calling a method on an Engine before Init.
var defaultEngine *Engine

// SetDefault installs e as the instance the package-level Write/Read/
// Delete/... functions delegate to. This exists only for call sites
// that want the single-global-instance ergonomics of the original C
// API; constructing an *Engine directly with New and calling its
// methods is the primary, and recommended, way to use this package.
func SetDefault(e *Engine) { defaultEngine = e }

// DefaultEngine returns the instance installed by SetDefault, or nil if
// none has been installed yet.
func DefaultEngine() *Engine { return defaultEngine }

// Write delegates to the default Engine's Write.
func Write(key string, value codec.Value) error {
	if defaultEngine == nil {
		return ErrNotStarted
	}
	return defaultEngine.Write(key, value)
}

// Read delegates to the default Engine's Read.
func Read(key string) (codec.Value, error) {
	if defaultEngine == nil {
		return codec.Value{}, ErrNotStarted
	}
	return defaultEngine.Read(key)
}

// Delete delegates to the default Engine's Delete.
func Delete(key string) error {
	if defaultEngine == nil {
		return ErrNotStarted
	}
	return defaultEngine.Delete(key)
}

// Dump delegates to the default Engine's Dump.
func Dump(w io.Writer) error {
	if defaultEngine == nil {
		return ErrNotStarted
	}
	return defaultEngine.Dump(w)
}
