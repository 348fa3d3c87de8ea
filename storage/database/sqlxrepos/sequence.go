package sqlxrepos

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

// SequenceAllocator allocates identifiers from per-kind counter rows. The
// allocation is a single upsert so Postgres serializes concurrent calls on
// the counter's row lock: no two transactions can ever read the same value.
type SequenceAllocator struct{}

func NewSequenceAllocator() *SequenceAllocator {
	return &SequenceAllocator{}
}

func (SequenceAllocator) NextID(ctx context.Context, tx core.DBTransactor, kind string) (int, error) {
	floor := core.SeqDefaultFloor
	if kind == core.SeqStudent {
		floor = core.SeqStudentFloor
	}

	const q = `
	INSERT INTO id_sequences (kind, value) VALUES ($1, $2)
	ON CONFLICT (kind) DO UPDATE SET value = id_sequences.value + 1
	RETURNING value`

	var value int
	if err := tx.QueryRowContext(ctx, q, kind, floor).Scan(&value); err != nil {
		return 0, errors.Wrapf(err, "allocating %s id", kind)
	}
	return value, nil
}

func (SequenceAllocator) NextCourseCode(ctx context.Context, tx core.DBTransactor, prefix string) (string, error) {
	const q = `
	INSERT INTO course_code_sequences (prefix, value) VALUES ($1, $2)
	ON CONFLICT (prefix) DO UPDATE SET value = course_code_sequences.value + 1
	RETURNING value`

	var value int
	if err := tx.QueryRowContext(ctx, q, prefix, core.CourseCodeFloor).Scan(&value); err != nil {
		return "", errors.Wrapf(err, "allocating %s course code", prefix)
	}
	return fmt.Sprintf("%s%03d", prefix, value), nil
}
