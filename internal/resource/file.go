package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
)

// Checker selects a File dependency's change-detection strategy.
type Checker int

const (
	// CheckerDigest is the three-level mtime -> size -> digest cascade.
	CheckerDigest Checker = iota
	// CheckerMtime is a single mtime-scalar comparison, cheaper but
	// blind to content changes that don't bump the modification time.
	CheckerMtime
)

// FileDependency is a local-filesystem dependency. Its key is the
// absolute, symlink-unresolved path, per spec §3.
type FileDependency struct {
	Path    string
	Checker Checker
}

// NewFileDependency returns a digest-checked FileDependency for path.
func NewFileDependency(path string) *FileDependency {
	return &FileDependency{Path: path, Checker: CheckerDigest}
}

func (d *FileDependency) Key() string {
	abs, err := filepath.Abs(d.Path)
	if err != nil {
		return d.Path
	}
	return abs
}

func (d *FileDependency) Exists() bool {
	_, err := os.Stat(d.Path)
	return err == nil
}

// IsModified implements the three-level test described in spec §4.1.
func (d *FileDependency) IsModified(previous *State) bool {
	if previous == nil || previous.File == nil {
		return true
	}
	info, err := os.Stat(d.Path)
	if err != nil {
		// Missing file: caller's Exists()/Check() surfaces this as
		// missing, not "modified"; treat as changed here so a direct
		// IsModified caller still gets a conservative answer.
		return true
	}

	if d.Checker == CheckerMtime {
		return !info.ModTime().Equal(previous.File.ModTime)
	}

	// Level 1: timestamp unchanged -> not modified (cheapest).
	if info.ModTime().Equal(previous.File.ModTime) {
		return false
	}
	// Level 2: size changed -> definitely modified.
	if info.Size() != previous.File.Size {
		return true
	}
	// Level 3: digest comparison.
	digest, err := fileDigest(d.Path)
	if err != nil {
		return true
	}
	return digest != previous.File.Digest
}

// CurrentState computes the state to persist after a successful run. For
// the digest checker, it returns ok=false when the mtime hasn't moved, so
// the caller can skip recomputing (and rewriting) a digest that can't
// have changed.
func (d *FileDependency) CurrentState(previous *State) (*State, bool) {
	info, err := os.Stat(d.Path)
	if err != nil {
		return nil, true
	}

	if d.Checker == CheckerMtime {
		return &State{Kind: KindFile, File: &FileState{ModTime: info.ModTime()}}, true
	}

	if previous != nil && previous.File != nil && info.ModTime().Equal(previous.File.ModTime) {
		return nil, false
	}

	digest, err := fileDigest(d.Path)
	if err != nil {
		digest = ""
	}
	return &State{Kind: KindFile, File: &FileState{
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Digest:  digest,
	}}, true
}

// Check resolves the scheduler's three-step decision from spec §4.1.
func (d *FileDependency) Check(previous *State, hasProducer bool) CheckResult {
	if !d.Exists() {
		if !hasProducer {
			return CheckResult{Status: StatusMissing, Reason: "missing input: " + d.Key()}
		}
		return CheckResult{Status: StatusChanged, Reason: "producer will create " + d.Key()}
	}
	if previous == nil {
		return CheckResult{Status: StatusChanged, Reason: "no stored state (first run)"}
	}
	if d.IsModified(previous) {
		return CheckResult{Status: StatusChanged, Reason: "content or mtime changed"}
	}
	return CheckResult{Status: StatusUpToDate, Reason: "mtime unchanged"}
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileTarget is an exact-match file output.
type FileTarget struct {
	Path string
}

func NewFileTarget(path string) *FileTarget {
	return &FileTarget{Path: path}
}

func (t *FileTarget) Key() string {
	abs, err := filepath.Abs(t.Path)
	if err != nil {
		return t.Path
	}
	return abs
}

func (t *FileTarget) Strategy() MatchStrategy { return MatchExact }

func (t *FileTarget) Matches(dep Dependency) bool { return dep.Key() == t.Key() }
