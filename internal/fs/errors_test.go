package fs

import (
	"fmt"
	"os"
	"syscall"
	"testing"

	"ritsufs/internal/state"
)

func TestToFuseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"not found", NewFSError(OpGetattr, "/x", ErrPathNotFound), syscall.ENOENT},
		{"lookup", NewFSError(OpLookup, "/other", ErrPathNotFound), syscall.ENOENT},
		{"selection", NewFSError(OpReadlink, "/ritsu", fmt.Errorf("draw: %w", state.ErrSelectionExhausted)), syscall.EIO},
		{"os not exist", os.ErrNotExist, syscall.ENOENT},
		{"os permission", os.ErrPermission, syscall.EACCES},
		{"other", fmt.Errorf("boom"), syscall.EIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToFuseError(tt.err); got != tt.want {
				t.Errorf("ToFuseError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewFSError(OpReadlink, "/nope", ErrPathNotFound)
	want := "operation readlink on /nope failed: path not found"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}
