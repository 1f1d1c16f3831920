package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestUnknownTypeRecordsNameRegardlessOfDedup(t *testing.T) {
	t.Parallel()

	tr := New(WithChecksums(true))
	tr.UnknownType(0, "WeirdType", []byte("abc"))
	tr.UnknownType(10, "WeirdType", []byte("abc")) // byte-identical payload, deduped

	types := tr.UnknownTypes()
	assert.Equal(t, 2, types["WeirdType"])
	assert.Equal(t, int64(2), tr.UnknownCount())
}

func TestUnknownMagicDedupCollapsesIssues(t *testing.T) {
	t.Parallel()

	tr := New(WithChecksums(true))
	tr.UnknownMagic(0, "ZZZZ", []byte("same"))
	tr.UnknownMagic(8, "ZZZZ", []byte("same"))
	tr.UnknownMagic(16, "ZZZZ", []byte("different"))

	require.Error(t, tr.Issues())
	assert.Len(t, multierr.Errors(tr.Issues()), 2)
}

func TestUnknownMagicWithoutChecksumsNeverDedups(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.UnknownMagic(0, "ZZZZ", []byte("same"))
	tr.UnknownMagic(8, "ZZZZ", []byte("same"))

	assert.Len(t, multierr.Errors(tr.Issues()), 2)
}

func TestProgressInvokesCallback(t *testing.T) {
	t.Parallel()

	var gotDone, gotTotal int
	tr := New(WithProgress(func(done, total int) {
		gotDone, gotTotal = done, total
	}))

	tr.Progress(3, 10)
	assert.Equal(t, 3, gotDone)
	assert.Equal(t, 10, gotTotal)
	assert.Equal(t, int64(3), tr.RecordsParsed())
}

func TestBytesConsumedIsCumulative(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.AddBytesConsumed(5)
	tr.AddBytesConsumed(7)
	assert.Equal(t, int64(12), tr.BytesConsumed())
}
