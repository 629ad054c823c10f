package feed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aretasg/surechembl-mini-client/internal/remote"
	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// DateSpec selects which front-file partitions a run ingests.
// Zero values mean "unset"; the zero DateSpec means "today".
type DateSpec struct {
	Day   int
	Month int
	Year  int
}

// IsToday reports whether the spec selects the current date.
func (s DateSpec) IsToday() bool {
	return s == DateSpec{}
}

// Validate rejects impossible field combinations before any I/O happens.
func (s DateSpec) Validate() error {
	if s.Day != 0 && (s.Month == 0 || s.Year == 0) {
		return fmt.Errorf("%w: a day requires both month and year", types.ErrConfiguration)
	}
	if s.Month != 0 && s.Year == 0 {
		return fmt.Errorf("%w: a month requires a year", types.ErrConfiguration)
	}
	if s.Month < 0 || s.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", types.ErrConfiguration, s.Month)
	}
	if s.Day < 0 || s.Day > 31 {
		return fmt.Errorf("%w: day %d out of range", types.ErrConfiguration, s.Day)
	}
	if s.Year < 0 {
		return fmt.Errorf("%w: year %d out of range", types.ErrConfiguration, s.Year)
	}
	return nil
}

// Resolver maps a date spec to the ordered list of front-file partition
// directories to visit.
type Resolver struct {
	// FrontfileDir is the feed root for daily partitions.
	FrontfileDir string
	// Backlog supplies previously missed partitions in today mode.
	Backlog *Backlog
	// Now returns the current time; overridable for tests.
	Now    func() time.Time
	Logger *log.Logger
}

// Resolve returns the partition directories for spec, in visit order.
// root is the session root directory partition paths are relative to.
//
// In today mode the current day's partition comes first, followed by any
// backlog entries in file order; the backlog file is consumed at this point,
// before the run knows whether today's fetch succeeds. Year and month modes
// discover the months/days that actually exist by listing the remote tree,
// and may leave conn positioned inside it.
func (r *Resolver) Resolve(ctx context.Context, conn remote.Conn, root string, spec DateSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	switch {
	case spec.IsToday():
		now := time.Now()
		if r.Now != nil {
			now = r.Now()
		}
		dirs := []string{r.dayDir(now.Year(), int(now.Month()), now.Day())}

		backlog, err := r.Backlog.Consume()
		if err != nil {
			return nil, err
		}
		if len(backlog) > 0 {
			r.Logger.Printf("Retrying %d backlog partition(s).", len(backlog))
			dirs = append(dirs, backlog...)
		}
		return dirs, nil

	case spec.Day != 0:
		return []string{r.dayDir(spec.Year, spec.Month, spec.Day)}, nil

	case spec.Month != 0:
		monthDir := fmt.Sprintf("%s/%d/%02d", r.FrontfileDir, spec.Year, spec.Month)
		days, err := r.listSubdirs(ctx, conn, root, monthDir)
		if err != nil {
			return nil, err
		}
		dirs := make([]string, 0, len(days))
		for _, day := range days {
			dirs = append(dirs, monthDir+"/"+day)
		}
		return dirs, nil

	default: // year mode
		yearDir := fmt.Sprintf("%s/%d", r.FrontfileDir, spec.Year)
		months, err := r.listSubdirs(ctx, conn, root, yearDir)
		if err != nil {
			return nil, err
		}
		var dirs []string
		for _, month := range months {
			days, err := r.listSubdirs(ctx, conn, root, yearDir+"/"+month)
			if err != nil {
				return nil, err
			}
			for _, day := range days {
				dirs = append(dirs, yearDir+"/"+month+"/"+day)
			}
		}
		return dirs, nil
	}
}

func (r *Resolver) dayDir(year, month, day int) string {
	return fmt.Sprintf("%s/%d/%02d/%02d", r.FrontfileDir, year, month, day)
}

// listSubdirs enters dir and lists its children. A missing dir propagates
// types.ErrNotFound: discovery modes have no backlog protocol, so the run
// terminates instead of guessing.
func (r *Resolver) listSubdirs(ctx context.Context, conn remote.Conn, root, dir string) ([]string, error) {
	if err := conn.ChangeDir(ctx, root); err != nil {
		return nil, err
	}
	if err := conn.ChangeDir(ctx, dir); err != nil {
		return nil, err
	}
	return conn.List(ctx, ".")
}
