package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ritsufs/internal/state"

	"github.com/spf13/afero"
)

// ValidationError lists every rule the settings broke.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid settings: " + strings.Join(e.Problems, "; ")
}

// rule checks one independent property of the settings.
type rule func(fsys afero.Fs, s Settings) error

var rules = []rule{
	checkLogSink,
	checkLinkName,
	checkTimeout,
	checkRootFolder,
	checkTargetFolder,
	checkDifferentFolders,
}

// Validate runs every rule and reports all failures together.
func Validate(fsys afero.Fs, s Settings) error {
	var errs []error
	for _, check := range rules {
		if err := check(fsys, s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}

	problems := make([]string, 0, len(errs))
	for _, err := range errs {
		problems = append(problems, err.Error())
	}
	return &ValidationError{Problems: problems}
}

func checkLogSink(_ afero.Fs, s Settings) error {
	if s.Verbose && s.LogSink == nil {
		return errors.New("verbose mode requires a log output")
	}
	return nil
}

func checkLinkName(_ afero.Fs, s Settings) error {
	if s.LinkName == "" || s.LinkName == "." || s.LinkName == ".." || strings.ContainsRune(s.LinkName, '/') {
		return fmt.Errorf("invalid link name %q", s.LinkName)
	}
	return nil
}

func checkTimeout(_ afero.Fs, s Settings) error {
	if s.Timeout < time.Millisecond {
		return fmt.Errorf("invalid timeout %v: must be at least 1ms", s.Timeout)
	}
	return nil
}

func checkRootFolder(fsys afero.Fs, s Settings) error {
	root := s.FileSystemRoot
	if root == "" {
		return errors.New("no file system root folder given")
	}
	info, err := fsys.Stat(root)
	if err != nil {
		return fmt.Errorf("unable to locate folder %s: %v", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a folder", root)
	}
	empty, err := afero.IsEmpty(fsys, root)
	if err != nil {
		return fmt.Errorf("unable to read folder %s: %v", root, err)
	}
	if !empty {
		return fmt.Errorf("folder %s is not empty", root)
	}
	return nil
}

func checkTargetFolder(fsys afero.Fs, s Settings) error {
	target := s.TargetFolder
	if target == "" {
		return errors.New("no target folder given")
	}
	info, err := fsys.Stat(target)
	if err != nil {
		return fmt.Errorf("unable to locate target folder %s: %v", target, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a folder", target)
	}

	entries, err := afero.ReadDir(fsys, target)
	if err != nil {
		return fmt.Errorf("unable to read target folder %s: %v", target, err)
	}
	files := 0
	for _, entry := range entries {
		if state.IsRegular(fsys, filepath.Join(target, entry.Name()), entry) {
			files++
		}
	}
	if files < 2 {
		return fmt.Errorf("folder %s does not contain at least two files", target)
	}
	return nil
}

func checkDifferentFolders(_ afero.Fs, s Settings) error {
	if s.TargetFolder == "" || s.FileSystemRoot == "" {
		return nil
	}
	if filepath.Clean(s.TargetFolder) == filepath.Clean(s.FileSystemRoot) {
		return errors.New("the same folder is used both as file system root and target folder")
	}
	return nil
}
