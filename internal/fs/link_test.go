package fs

import (
	"context"
	"os"
	"testing"
	"time"

	"ritsufs/internal/state"

	"bazil.org/fuse"
)

func lookupLink(t *testing.T, vfs *RitsuFS) *Link {
	t.Helper()
	root, _ := vfs.Root()
	node, err := root.(*Dir).Lookup(context.Background(), "ritsu")
	if err != nil {
		t.Fatalf("Failed to lookup link: %v", err)
	}
	return node.(*Link)
}

func TestLinkOperations(t *testing.T) {
	vfs, clock := setupTestFS(t, testFiles)
	ctx := context.Background()
	link := lookupLink(t, vfs)

	var first string

	t.Run("Readlink", func(t *testing.T) {
		target, err := link.Readlink(ctx, &fuse.ReadlinkRequest{})
		if err != nil {
			t.Fatalf("Failed to read link: %v", err)
		}
		found := false
		for _, f := range testFiles {
			if f == target {
				found = true
			}
		}
		if !found {
			t.Errorf("Link points at %q, not a source file", target)
		}
		first = target
	})

	t.Run("LinkAttributes", func(t *testing.T) {
		attr := &fuse.Attr{Valid: time.Minute}
		if err := link.Attr(ctx, attr); err != nil {
			t.Fatalf("Failed to get link attributes: %v", err)
		}
		if attr.Mode&os.ModeSymlink == 0 {
			t.Error("Link should be a symlink")
		}
		if attr.Mode.Perm() != 0444 {
			t.Errorf("Link permissions = %v, want 0444", attr.Mode.Perm())
		}
		if attr.Size != uint64(len(first)) {
			t.Errorf("Link size = %d, want %d", attr.Size, len(first))
		}
		if attr.Valid != 0 {
			t.Errorf("Link attributes must not be cached, got Valid=%v", attr.Valid)
		}
	})

	t.Run("DebouncedReadlink", func(t *testing.T) {
		clock.Advance(50 * time.Millisecond)
		target, err := link.Readlink(ctx, &fuse.ReadlinkRequest{})
		if err != nil {
			t.Fatalf("Failed to read link: %v", err)
		}
		if target != first {
			t.Errorf("Target changed inside the window: %q -> %q", first, target)
		}

		clock.Advance(time.Second)
		target, err = link.Readlink(ctx, &fuse.ReadlinkRequest{})
		if err != nil {
			t.Fatalf("Failed to read link: %v", err)
		}
		if target == first {
			t.Errorf("Target repeated after the window with repeats prevented: %q", target)
		}
	})
}

func TestLinkEmptySource(t *testing.T) {
	vfs, _ := setupTestFS(t, nil)
	link := lookupLink(t, vfs)

	target, err := link.Readlink(context.Background(), &fuse.ReadlinkRequest{})
	if err != nil {
		t.Fatalf("Readlink on an empty source should not fail: %v", err)
	}
	if target != state.NoTarget {
		t.Errorf("Expected %q, got %q", state.NoTarget, target)
	}
}
