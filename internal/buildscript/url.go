// Package buildscript locates, validates, fetches, and runs build scripts.
package buildscript

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/paulcbetts/peasant/internal/forge"
)

// ForbiddenError indicates a build-script URL failed the policy gate.
type ForbiddenError struct {
	URL string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("build script URL not allowed: %s", e.URL)
}

// Validate applies the policy gate to a build-script URL. A URL with no
// owner/name pair is rejected. A script owned by the caller's own account
// is accepted outright; anything else is accepted iff the hosting service
// resolves the repository as accessible. This check is deliberately
// permissive.
func Validate(ctx context.Context, client forge.Client, account, scriptURL string) error {
	nwo, ok := forge.ParseNWO(scriptURL)
	if !ok {
		return &ForbiddenError{URL: scriptURL}
	}
	if strings.EqualFold(nwo.Owner, account) {
		return nil
	}
	exists, err := client.RepoExists(ctx, nwo)
	if err != nil {
		return fmt.Errorf("validate script URL: %w", err)
	}
	if !exists {
		return &ForbiddenError{URL: scriptURL}
	}
	return nil
}

// RawURL rewrites a browse URL of the form .../blob/master/<path> into the
// raw form pinned to the build's commit: /blob/ becomes /raw/ and /master/
// becomes /<commit>/.
func RawURL(scriptURL, commit string) string {
	raw := strings.Replace(scriptURL, "/blob/", "/raw/", 1)
	return strings.Replace(raw, "/master/", "/"+commit+"/", 1)
}

// LocalPath derives the checked-out location of a script that lives in the
// build's own repository, by taking the URL path after the /blob/<ref>/
// segment and translating separators.
func LocalPath(workspaceDir, scriptURL string) (string, error) {
	idx := strings.Index(scriptURL, "/blob/")
	if idx < 0 {
		return "", fmt.Errorf("script URL has no /blob/ segment: %s", scriptURL)
	}
	rest := scriptURL[idx+len("/blob/"):]
	slash := strings.Index(rest, "/")
	if slash < 0 || slash == len(rest)-1 {
		return "", fmt.Errorf("script URL has no path after ref: %s", scriptURL)
	}
	rel := rest[slash+1:]
	return filepath.Join(workspaceDir, filepath.FromSlash(rel)), nil
}

// Basename returns the file name component of a script URL.
func Basename(scriptURL string) string {
	return path.Base(strings.TrimSuffix(scriptURL, "/"))
}
