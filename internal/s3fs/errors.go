package s3fs

import (
	"fmt"
	"strings"

	"github.com/s3fs-fuse/s3storage/internal/errs"
)

// storeError re-labels a backend failure for the caller. Authorization and
// configuration failures keep their kind; anything else becomes KindIO.
func storeError(err error, msg string, paths ...string) *errs.Error {
	switch errs.KindOf(err) {
	case errs.KindAccessDenied:
		return errs.Wrap(errs.KindAccessDenied, msg, err, paths...)
	case errs.KindConfiguration:
		return errs.Wrap(errs.KindConfiguration, msg, err, paths...)
	default:
		return errs.Wrap(errs.KindIO, msg, err, paths...)
	}
}

// PlanError reports a mutation plan that stopped partway. Completed lists the
// steps that reached the store before Failed was rejected; they are not
// rolled back.
type PlanError struct {
	Op        string
	Completed []Step
	Failed    Step
	Err       error
}

func (e *PlanError) Error() string {
	done := make([]string, len(e.Completed))
	for i, s := range e.Completed {
		done[i] = s.String()
	}
	return fmt.Sprintf("%s failed at %s after %d completed step(s) [%s]: %v",
		e.Op, e.Failed, len(e.Completed), strings.Join(done, "; "), e.Err)
}

func (e *PlanError) Unwrap() error {
	return e.Err
}
