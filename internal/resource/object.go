package resource

import (
	"fmt"
	"time"
)

// ObjectStat is the minimal surface an object-store client must provide
// for change detection: a HEAD-style lookup returning the current etag
// and last-modified time, or an error if the object doesn't exist or the
// request failed. internal/objectstore implements this against MinIO.
type ObjectStat interface {
	Stat(bucket, key string) (etag string, lastModified time.Time, err error)
}

// ObjectDependency is a cloud-object-store dependency, keyed by its URI
// "scheme://bucket/key". Change detection compares the stored etag to a
// fresh HEAD.
type ObjectDependency struct {
	Scheme      string
	Bucket      string
	ObjectKey   string
	Credentials any // opaque credentials handle, see SPEC_FULL §3
	Stat        ObjectStat
}

func (d *ObjectDependency) Key() string {
	return fmt.Sprintf("%s://%s/%s", d.scheme(), d.Bucket, d.ObjectKey)
}

func (d *ObjectDependency) scheme() string {
	if d.Scheme == "" {
		return "s3"
	}
	return d.Scheme
}

func (d *ObjectDependency) Exists() bool {
	if d.Stat == nil {
		return false
	}
	_, _, err := d.Stat.Stat(d.Bucket, d.ObjectKey)
	return err == nil
}

func (d *ObjectDependency) IsModified(previous *State) bool {
	if previous == nil || previous.ObjectStore == nil {
		return true
	}
	if d.Stat == nil {
		return true
	}
	etag, _, err := d.Stat.Stat(d.Bucket, d.ObjectKey)
	if err != nil {
		return true
	}
	return etag != previous.ObjectStore.ETag
}

func (d *ObjectDependency) CurrentState(previous *State) (*State, bool) {
	if d.Stat == nil {
		return nil, false
	}
	etag, lastModified, err := d.Stat.Stat(d.Bucket, d.ObjectKey)
	if err != nil {
		return nil, false
	}
	return &State{Kind: KindObject, ObjectStore: &ObjectState{
		ETag:         etag,
		LastModified: lastModified,
	}}, true
}

func (d *ObjectDependency) Check(previous *State, hasProducer bool) CheckResult {
	if !d.Exists() {
		if !hasProducer {
			return CheckResult{Status: StatusMissing, Reason: "missing object: " + d.Key()}
		}
		return CheckResult{Status: StatusChanged, Reason: "producer will create " + d.Key()}
	}
	if previous == nil {
		return CheckResult{Status: StatusChanged, Reason: "no stored etag (first run)"}
	}
	if d.IsModified(previous) {
		return CheckResult{Status: StatusChanged, Reason: "etag changed"}
	}
	return CheckResult{Status: StatusUpToDate, Reason: "etag unchanged"}
}

// ObjectTarget is an exact-match object-store output.
type ObjectTarget struct {
	Scheme    string
	Bucket    string
	ObjectKey string
}

func (t *ObjectTarget) Key() string {
	scheme := t.Scheme
	if scheme == "" {
		scheme = "s3"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, t.Bucket, t.ObjectKey)
}

func (t *ObjectTarget) Strategy() MatchStrategy { return MatchExact }

func (t *ObjectTarget) Matches(dep Dependency) bool { return dep.Key() == t.Key() }
