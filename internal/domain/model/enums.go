package model

// BootstrapState is the routing outcome of session bootstrap.
type BootstrapState string

const (
	BootstrapInitializing    BootstrapState = "initializing"
	BootstrapAuthenticated   BootstrapState = "authenticated"
	BootstrapOffline         BootstrapState = "offline"
	BootstrapUnauthenticated BootstrapState = "unauthenticated"
)

// HasIdentity reports whether the state routes to the chat view.
func (s BootstrapState) HasIdentity() bool {
	return s == BootstrapAuthenticated || s == BootstrapOffline
}

// Backend selects which remote collaborators the client talks to.
type Backend string

const (
	BackendFirebase Backend = "firebase"
	BackendMemory   Backend = "memory" // In-process identity provider and collection.
)
