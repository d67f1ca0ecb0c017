package resource

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizeDirKey ensures a directory/prefix key ends in exactly one '/'.
func NormalizeDirKey(key string) string {
	return strings.TrimRight(key, "/") + "/"
}

// absDirKey resolves a local directory/prefix path to its absolute,
// trailing-slash-normalized key, the same filepath.Abs-against-the-
// process-cwd convention FileDependency/FileTarget use (file.go), so a
// DirectoryTarget and a FileDependency it's meant to own compare as the
// same key space regardless of which relative path either was declared
// with. filepath.Abs cleans away the trailing slash, so normalization
// is re-applied after.
func absDirKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return NormalizeDirKey(path)
	}
	return NormalizeDirKey(abs)
}

// DirectoryDependency is a local directory or an object-store prefix
// treated as a dependency. Per spec §4.1, it reports CHANGED whenever it
// exists or has a producer: prefix membership can't be determined
// without a listing, and correctness is the producer task's
// responsibility. A missing local directory with no producer reports
// MISSING.
type DirectoryDependency struct {
	Path      string
	IsObject  bool
	Bucket    string
	prefixKey string // used only when IsObject
}

func NewDirectoryDependency(path string) *DirectoryDependency {
	return &DirectoryDependency{Path: NormalizeDirKey(path)}
}

// NewObjectPrefixDependency builds the object-store counterpart, keyed as
// "scheme://bucket/prefix/".
func NewObjectPrefixDependency(scheme, bucket, prefix string) *DirectoryDependency {
	if scheme == "" {
		scheme = "s3"
	}
	return &DirectoryDependency{
		IsObject:  true,
		Bucket:    bucket,
		prefixKey: scheme + "://" + bucket + "/" + NormalizeDirKey(prefix),
	}
}

func (d *DirectoryDependency) Key() string {
	if d.IsObject {
		return d.prefixKey
	}
	return absDirKey(d.Path)
}

func (d *DirectoryDependency) Exists() bool {
	if d.IsObject {
		return true // existence of a prefix is not well-defined; always assume present
	}
	info, err := os.Stat(d.Path)
	return err == nil && info.IsDir()
}

func (d *DirectoryDependency) IsModified(*State) bool { return true }

func (d *DirectoryDependency) CurrentState(*State) (*State, bool) { return nil, false }

func (d *DirectoryDependency) Check(_ *State, hasProducer bool) CheckResult {
	if !d.Exists() && !hasProducer {
		return CheckResult{Status: StatusMissing, Reason: "missing directory: " + d.Key()}
	}
	return CheckResult{Status: StatusChanged, Reason: "always triggers re-run"}
}

// DirectoryTarget is a prefix-match output: a task that declares this
// target is considered the producer of anything under Path.
type DirectoryTarget struct {
	Path      string
	IsObject  bool
	Bucket    string
	prefixKey string
}

func NewDirectoryTarget(path string) *DirectoryTarget {
	return &DirectoryTarget{Path: NormalizeDirKey(path)}
}

func NewObjectPrefixTarget(scheme, bucket, prefix string) *DirectoryTarget {
	if scheme == "" {
		scheme = "s3"
	}
	return &DirectoryTarget{
		IsObject:  true,
		Bucket:    bucket,
		prefixKey: scheme + "://" + bucket + "/" + NormalizeDirKey(prefix),
	}
}

func (t *DirectoryTarget) Key() string {
	if t.IsObject {
		return t.prefixKey
	}
	return absDirKey(t.Path)
}

func (t *DirectoryTarget) Strategy() MatchStrategy { return MatchPrefix }

func (t *DirectoryTarget) Matches(dep Dependency) bool {
	return strings.HasPrefix(dep.Key(), t.Key())
}
