// Package correlate joins independently walked OLT subtrees into interface
// and ONU record sets.
//
// Every transport failure is soft: a failed walk is an empty subtree and a
// failed get is an absent field. The correlators never retry and never abort
// a poll.
package correlate

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vpbank/olt_collector/pkg/oltcollector/session"
)

// Source is the agent access the correlators need. *session.Session and
// *session.Replay implement it.
type Source interface {
	Get(ctx context.Context, oid string) (interface{}, error)
	Walk(ctx context.Context, root string, stripPrefix bool) (session.Table, error)
}

// Tally counts the soft failures seen while correlating.
type Tally struct {
	Failed int
}

// ─────────────────────────────────────────────────────────────────────────────
// Soft-failure helpers
// ─────────────────────────────────────────────────────────────────────────────

// walk returns the subtree under root, or whatever was collected before an
// error. Errors are logged and counted.
func walk(ctx context.Context, src Source, root string, strip bool, logger *slog.Logger, t *Tally) session.Table {
	if root == "" {
		return session.Table{}
	}
	tbl, err := src.Walk(ctx, root, strip)
	if err != nil {
		t.Failed++
		logger.Warn("correlate: walk failed, subtree treated as empty",
			"oid", root,
			"rows", tbl.Len(),
			"error", err.Error(),
		)
	}
	return tbl
}

// get returns the value at oid or false. A missing value is not a failure.
func get(ctx context.Context, src Source, oid string, logger *slog.Logger, t *Tally) (interface{}, bool) {
	v, err := src.Get(ctx, oid)
	switch {
	case err == nil:
		return v, v != nil
	case errors.Is(err, session.ErrNoValue):
		logger.Debug("correlate: no value", "oid", oid)
	default:
		t.Failed++
		logger.Warn("correlate: get failed, field left at default",
			"oid", oid,
			"error", err.Error(),
		)
	}
	return nil, false
}

// lessIndex orders dotted row indexes numerically component by component.
func lessIndex(a, b string) bool {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA != nil || errB != nil {
			if pa[i] != pb[i] {
				return pa[i] < pb[i]
			}
			continue
		}
		if na != nb {
			return na < nb
		}
	}
	return len(pa) < len(pb)
}

func discardLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(noopWriter{}, nil))
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
