// Package forge talks to the source-hosting service: repository lookup for
// the build-script policy gate and credentials for cloning.
package forge

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Client answers the two questions the queue core asks of the hosting
// service: does a repository exist (and is the caller authorized to read
// it), and what credentials to use for cloning.
type Client interface {
	// RepoExists reports whether the repository is accessible with the
	// client's credentials. A definitive "no" is (false, nil); errors are
	// reserved for failed lookups (transport failures or unexpected
	// responses).
	RepoExists(ctx context.Context, nwo NWO) (bool, error)

	// Credentials returns the auth to pass to workspace provisioning.
	// May be nil for anonymous access.
	Credentials() transport.AuthMethod
}
