// Package catalog defines the contract between the engine and the photo
// library backend that owns the assets and decodes their images.
package catalog

import (
	"context"
	"errors"
	"image"

	"github.com/marmos91/gridcache/pkg/asset"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrNotFound is returned when an asset or library root does not exist.
	ErrNotFound = errors.New("asset not found")

	// ErrClosed is returned when a closed catalog is used.
	ErrClosed = errors.New("catalog is closed")
)

// ============================================================================
// Request types
// ============================================================================

// Fidelity selects the delivery trade-off for a request.
type Fidelity int

const (
	// FidelityLow favours speed over quality. Used for thumbnails.
	FidelityLow Fidelity = iota

	// FidelityHigh favours quality. Used for on-screen renditions.
	FidelityHigh
)

func (f Fidelity) String() string {
	switch f {
	case FidelityLow:
		return "low"
	case FidelityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// RequestID identifies an outstanding image request. The zero value never
// identifies a live request.
type RequestID string

// DoneFunc receives the decoded image, or nil when the catalog could not
// produce one.
type DoneFunc func(img image.Image)

// AuthStatus is the library access state.
type AuthStatus int

const (
	AuthNotDetermined AuthStatus = iota
	AuthAuthorized
	AuthDenied
	AuthRestricted
)

func (s AuthStatus) String() string {
	switch s {
	case AuthAuthorized:
		return "authorized"
	case AuthDenied:
		return "denied"
	case AuthRestricted:
		return "restricted"
	default:
		return "not_determined"
	}
}

// ============================================================================
// Interfaces
// ============================================================================

// Catalog produces decoded images for assets.
//
// RequestImage returns immediately. done runs exactly once on some goroutine
// chosen by the catalog, with a nil image on failure. If the request is
// cancelled before delivery, done may or may not run. The returned handle may
// be passed to Cancel; cancelling a completed or unknown handle is a no-op.
type Catalog interface {
	RequestImage(ctx context.Context, a asset.Asset, size asset.Size, fidelity Fidelity, done DoneFunc) RequestID
	Cancel(id RequestID)
}

// Lister enumerates the library in display order.
type Lister interface {
	List(ctx context.Context) ([]asset.Asset, error)
}

// Authorizer reports whether the library may be read.
type Authorizer interface {
	Status(ctx context.Context) (AuthStatus, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context) (AuthStatus, error)

// Status calls f.
func (f AuthorizerFunc) Status(ctx context.Context) (AuthStatus, error) { return f(ctx) }
