package s3fs

import (
	"context"
	"fmt"

	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/pathutil"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// Action is a single object-store request kind within a Plan.
type Action string

const (
	ActionCopy        Action = "copy"
	ActionDelete      Action = "delete"
	ActionDeleteBatch Action = "delete-batch"
)

// Step is one request of a Plan. Copy steps use Key and DestKey, delete
// steps use Key and batch deletes use Keys.
type Step struct {
	Action  Action
	Key     string
	DestKey string
	Keys    []string
}

func (s Step) String() string {
	switch s.Action {
	case ActionCopy:
		return fmt.Sprintf("copy %s -> %s", s.Key, s.DestKey)
	case ActionDeleteBatch:
		return fmt.Sprintf("delete-batch %d key(s)", len(s.Keys))
	default:
		return fmt.Sprintf("%s %s", s.Action, s.Key)
	}
}

// Plan is the request sequence of a rename, copy or delete, computed from a
// single listing of the source prefix. Executing it is not atomic.
type Plan struct {
	Op    string
	Steps []Step
}

// PlanCopy lists every key under origin and returns one copy step per key,
// with the destination key formed by substituting dest for the first
// occurrence of origin's key.
func (fs *FileSystem) PlanCopy(ctx context.Context, origin, dest string) (*Plan, error) {
	src, dst, keys, err := fs.enumerate(ctx, origin, dest)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Op: "copy", Steps: make([]Step, 0, len(keys))}
	for _, key := range keys {
		plan.Steps = append(plan.Steps, Step{
			Action:  ActionCopy,
			Key:     key,
			DestKey: pathutil.ReplacePrefix(key, src, dst),
		})
	}
	return plan, nil
}

// PlanRename is PlanCopy with each copy followed by a delete of its source key.
func (fs *FileSystem) PlanRename(ctx context.Context, oldPath, newPath string) (*Plan, error) {
	src, dst, keys, err := fs.enumerate(ctx, oldPath, newPath)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Op: "rename", Steps: make([]Step, 0, 2*len(keys))}
	for _, key := range keys {
		plan.Steps = append(plan.Steps,
			Step{Action: ActionCopy, Key: key, DestKey: pathutil.ReplacePrefix(key, src, dst)},
			Step{Action: ActionDelete, Key: key},
		)
	}
	return plan, nil
}

// PlanDelete lists every key under p and returns a single batch delete.
// The key of p is used as a raw prefix, so "/d" also matches "/dx".
func (fs *FileSystem) PlanDelete(ctx context.Context, p string) (*Plan, error) {
	_, _, keys, err := fs.enumerate(ctx, p, "")
	if err != nil {
		return nil, err
	}
	return &Plan{
		Op:    "delete",
		Steps: []Step{{Action: ActionDeleteBatch, Keys: keys}},
	}, nil
}

// enumerate lists the keys under the exact key of origin and returns both
// keys alongside the listing.
func (fs *FileSystem) enumerate(ctx context.Context, origin, dest string) (string, string, []string, error) {
	if err := fs.ready(); err != nil {
		return "", "", nil, err
	}
	src := pathutil.ToKeyExact(normalize(origin))
	if src == "" {
		return "", "", nil, errs.New(errs.KindUsage, "refusing to operate on the bucket root", origin)
	}
	dst := pathutil.ToKeyExact(normalize(dest))

	out, err := fs.listPage(ctx, types.ListInput{Prefix: src})
	if err != nil {
		return "", "", nil, err
	}
	keys := make([]string, len(out.Objects))
	for i, obj := range out.Objects {
		keys[i] = obj.Key
	}
	return src, dst, keys, nil
}

// Execute runs plan in order and stops at the first rejected step. The
// returned error is a *PlanError carrying the steps that completed.
func (fs *FileSystem) Execute(ctx context.Context, plan *Plan) error {
	if err := fs.ready(); err != nil {
		return err
	}
	for i, step := range plan.Steps {
		var err error
		switch step.Action {
		case ActionCopy:
			err = fs.backend.CopyObject(ctx, step.Key, step.DestKey)
		case ActionDelete:
			err = fs.backend.DeleteObject(ctx, step.Key)
		case ActionDeleteBatch:
			err = fs.backend.DeleteObjects(ctx, step.Keys)
		default:
			err = errs.New(errs.KindUsage, "unknown plan action "+string(step.Action))
		}
		if err != nil {
			return &PlanError{
				Op:        plan.Op,
				Completed: plan.Steps[:i],
				Failed:    step,
				Err:       err,
			}
		}
	}
	return nil
}

// Create puts an empty object at p. It returns false without writing if an
// object already exists there.
func (fs *FileSystem) Create(ctx context.Context, p string) (bool, error) {
	if err := fs.ready(); err != nil {
		return false, err
	}
	key := pathutil.ToKeyExact(normalize(p))

	exists, err := fs.backend.DoesObjectExist(ctx, key)
	if err != nil {
		return false, storeError(err, "failed to check file", p)
	}
	if exists {
		return false, nil
	}
	if err := fs.backend.PutObject(ctx, key, nil, nil); err != nil {
		return false, storeError(err, "failed to create file", p)
	}
	return true, nil
}

// Delete removes every object whose key starts with the key of p in one
// batch delete. A prefix with no keys is a successful no-op. The bucket
// root ("" or "/") is refused with a usage error rather than emptying the
// bucket.
func (fs *FileSystem) Delete(ctx context.Context, p string) (bool, error) {
	plan, err := fs.PlanDelete(ctx, p)
	if err != nil {
		return false, fs.mutationError(err, "failed to delete", p)
	}
	if err := fs.Execute(ctx, plan); err != nil {
		return false, fs.mutationError(err, "failed to delete", p)
	}
	return true, nil
}

// Copy copies every object under origin to the matching key under dest. A
// failure partway leaves the keys copied so far in place. The bucket root
// cannot be an origin.
func (fs *FileSystem) Copy(ctx context.Context, origin, dest string) (bool, error) {
	plan, err := fs.PlanCopy(ctx, origin, dest)
	if err != nil {
		return false, fs.mutationError(err, "failed to copy", origin, dest)
	}
	if err := fs.Execute(ctx, plan); err != nil {
		return false, fs.mutationError(err, "failed to copy", origin, dest)
	}
	return true, nil
}

// RenameTo moves every object under oldPath to the matching key under
// newPath, copying then deleting one key at a time.
//
// When the store denies a request partway, the object at newPath is deleted
// as a best-effort cleanup and an access-denied error is returned. Origin
// keys already moved are not restored. The bucket root cannot be renamed.
func (fs *FileSystem) RenameTo(ctx context.Context, oldPath, newPath string) (bool, error) {
	plan, err := fs.PlanRename(ctx, oldPath, newPath)
	if err != nil {
		return false, fs.mutationError(err, "failed to rename", oldPath, newPath)
	}

	err = fs.Execute(ctx, plan)
	if err == nil {
		return true, nil
	}
	if errs.IsAccessDenied(err) {
		dst := pathutil.ToKeyExact(normalize(newPath))
		if cerr := fs.backend.DeleteObject(ctx, dst); cerr != nil {
			fs.log.WarnErr("rename cleanup failed", cerr, map[string]string{"key": dst})
		} else {
			fs.log.With().Str("key", dst).Logger().Warn("rename denied, destination removed")
		}
	}
	return false, fs.mutationError(err, "failed to rename", oldPath, newPath)
}

// mutationError converts a plan failure into an *errs.Error. Usage errors
// pass through unchanged.
func (fs *FileSystem) mutationError(err error, msg string, paths ...string) error {
	if errs.IsUsage(err) {
		return err
	}
	return storeError(err, msg, paths...)
}
