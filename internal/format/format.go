// Package format defines the Format Readers contract (C1): a capability
// set that enumerates a lazy sequence of ParseableEmail handles for one
// archive layout, plus the FormatType dispatch that picks a concrete
// reader.
package format

import (
	"context"

	"github.com/Napageneral/postsack/internal/config"
	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/progress"
)

// ParseableEmail is a format-agnostic handle yielding message bytes,
// source path, and optional per-format metadata hints.
type ParseableEmail interface {
	// Prepare performs any up-front work (decompression, plist parsing,
	// sidecar JSON loading). Called at most once before any accessor.
	Prepare() error
	// Bytes returns the RFC 822 message bytes.
	Bytes() ([]byte, error)
	// Path returns the original filesystem path, for diagnostics and
	// uniqueness.
	Path() string
	// Meta returns optional per-format metadata hints.
	Meta() (*email.Meta, error)
}

// MissingPermissionsError distinguishes a root-enumeration permission
// failure so the coordinator can emit progress.MissingPermissions on
// macOS instead of a generic error (SPEC_FULL.md §4.1).
type MissingPermissionsError struct {
	Path string
	Err  error
}

func (e *MissingPermissionsError) Error() string {
	return "permission denied reading " + e.Path + ": " + e.Err.Error()
}

func (e *MissingPermissionsError) Unwrap() error { return e.Err }

// Reader enumerates ParseableEmail handles for one archive layout.
type Reader interface {
	// DefaultPath returns the conventional root for this format, if one
	// exists (e.g. ~/Library/Mail for Apple Mail).
	DefaultPath() (string, bool)
	// Enumerate walks root and streams ParseableEmail handles on the
	// returned channel, emitting ReadTotal/ReadOne progress events as it
	// goes. The channel is closed when enumeration finishes or ctx is
	// cancelled.
	Enumerate(ctx context.Context, root string, events chan<- progress.Message) (<-chan ParseableEmail, error)
}

// ForFormat dispatches a FormatType to its concrete Reader, the small
// dispatch table SPEC_FULL.md §9 calls for.
func ForFormat(f config.FormatType) (Reader, error) {
	switch f {
	case config.FormatMbox:
		return NewMbox(), nil
	case config.FormatAppleMail:
		return NewAppleMail(), nil
	case config.FormatGmailVault:
		return NewGmailVault(), nil
	default:
		return nil, config.ErrUnknownFormat
	}
}
