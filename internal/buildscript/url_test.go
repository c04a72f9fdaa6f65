package buildscript

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/paulcbetts/peasant/internal/forge"
)

type fakeForge struct {
	exists bool
	err    error
	asked  []string
}

func (f *fakeForge) RepoExists(ctx context.Context, nwo forge.NWO) (bool, error) {
	f.asked = append(f.asked, nwo.String())
	return f.exists, f.err
}

func (f *fakeForge) Credentials() transport.AuthMethod { return nil }

func TestValidateOwnAccountSkipsLookup(t *testing.T) {
	client := &fakeForge{}
	err := Validate(context.Background(), client, "me", "https://github.com/ME/tools/blob/master/build.sh")
	if err != nil {
		t.Fatalf("expected own-account script accepted, got %v", err)
	}
	if len(client.asked) != 0 {
		t.Fatalf("expected no forge lookup, got %v", client.asked)
	}
}

func TestValidateForeignRepoConsultsForge(t *testing.T) {
	client := &fakeForge{exists: true}
	err := Validate(context.Background(), client, "me", "https://github.com/other/tools/blob/master/build.sh")
	if err != nil {
		t.Fatalf("expected accessible repo accepted, got %v", err)
	}
	if len(client.asked) != 1 || client.asked[0] != "other/tools" {
		t.Fatalf("unexpected lookups: %v", client.asked)
	}

	client = &fakeForge{exists: false}
	err = Validate(context.Background(), client, "me", "https://github.com/other/tools/blob/master/build.sh")
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestValidateRejectsURLWithoutNWO(t *testing.T) {
	client := &fakeForge{exists: true}
	err := Validate(context.Background(), client, "me", "https://example.com/")
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for nwo-less URL, got %v", err)
	}
}

func TestRawURLRewrite(t *testing.T) {
	got := RawURL("https://github.com/me/widget/blob/master/ci/build.sh", "abc123")
	want := "https://github.com/me/widget/raw/abc123/ci/build.sh"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLocalPathFromBlobURL(t *testing.T) {
	got, err := LocalPath("/ws", "https://github.com/me/widget/blob/master/ci/build.sh")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("/ws", "ci", "build.sh")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if _, err := LocalPath("/ws", "https://github.com/me/widget/build.sh"); err == nil {
		t.Fatal("expected error for URL without /blob/ segment")
	}
}

func TestBasename(t *testing.T) {
	if got := Basename("https://github.com/me/widget/blob/master/ci/build.sh"); got != "build.sh" {
		t.Fatalf("unexpected basename %q", got)
	}
}
