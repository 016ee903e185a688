package step

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTetraFixture(t *testing.T) {
	src, err := os.ReadFile("testdata/tetra.stp")
	require.NoError(t, err)

	f, err := Parse(src)
	require.NoError(t, err)

	require.Len(t, f.Header, 3)
	assert.Equal(t, "FILE_DESCRIPTION", f.Header[0].Type)
	assert.Equal(t, "FILE_SCHEMA", f.Header[2].Type)
	assert.Len(t, f.Instances, 19)

	rec, ok := f.Instances[2].Simple()
	require.True(t, ok)
	assert.Equal(t, "CARTESIAN_POINT", rec.Type)
	require.Len(t, rec.Params, 2)
	assert.Equal(t, KindString, rec.Params[0].Kind)
	assert.Equal(t, "B", rec.Params[0].Str)
	require.Equal(t, KindList, rec.Params[1].Kind)
	assert.Equal(t, 10.0, rec.Params[1].List[0].Num)

	unit := f.Instances[50]
	_, ok = unit.Simple()
	assert.False(t, ok)
	require.Len(t, unit.Records, 3)
	assert.Equal(t, "LENGTH_UNIT", unit.Records[0].Type)
	assert.Empty(t, unit.Records[0].Params)
	assert.Equal(t, KindDerived, unit.Records[1].Params[0].Kind)
	assert.Equal(t, "MILLI", unit.Records[2].Params[0].Str)
}

func TestParseTypedParameter(t *testing.T) {
	src := []byte(`ISO-10303-21;
HEADER;
FILE_SCHEMA(('AUTOMOTIVE_DESIGN'));
ENDSEC;
DATA('part',('AUTOMOTIVE_DESIGN'));
#7=MEASURE_REPRESENTATION_ITEM('tol',LENGTH_MEASURE(1.E-07),#8);
#8=$DUMMY('');
ENDSEC;
END-ISO-10303-21;
`)
	_, err := Parse(src)
	require.ErrorIs(t, err, ErrSyntax)

	src = []byte(`ISO-10303-21;
HEADER;
ENDSEC;
DATA;
#7=MEASURE_REPRESENTATION_ITEM('tol',LENGTH_MEASURE(1.E-07),$);
ENDSEC;
DATA;
#9=DIRECTION('',(0.,0.,1.));
ENDSEC;
END-ISO-10303-21;
`)
	f, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, f.Instances, 2)

	rec, ok := f.Instances[7].Simple()
	require.True(t, ok)
	require.Equal(t, KindTyped, rec.Params[1].Kind)
	assert.Equal(t, "LENGTH_MEASURE", rec.Params[1].Typed.Type)
	assert.InDelta(t, 1e-7, rec.Params[1].Typed.Params[0].Num, 1e-15)
	assert.Equal(t, KindNull, rec.Params[2].Kind)
}

func TestParseRejects(t *testing.T) {
	tetra, err := os.ReadFile("testdata/tetra.stp")
	require.NoError(t, err)

	cases := []struct {
		name string
		src  string
		want error
	}{
		{"plain text", "hello world\n", ErrNotExchangeFile},
		{"empty", "", ErrNotExchangeFile},
		{"binary junk", "\x00\x01\x02", ErrNotExchangeFile},
		{"truncated", string(tetra[:len(tetra)/2]), ErrSyntax},
		{"no data section", "ISO-10303-21;\nHEADER;\nENDSEC;\nEND-ISO-10303-21;\n", ErrSyntax},
		{"duplicate instance", "ISO-10303-21;HEADER;ENDSEC;DATA;#1=A(1);#1=B(2);ENDSEC;END-ISO-10303-21;", ErrSyntax},
		{"missing semicolon", "ISO-10303-21;HEADER;ENDSEC;DATA;#1=A(1)ENDSEC;END-ISO-10303-21;", ErrSyntax},
		{"unbalanced nesting", "ISO-10303-21;HEADER;ENDSEC;DATA;#1=X(" + strings.Repeat("(", 1_000_000), ErrSyntax},
		{"nested typed parameters", "ISO-10303-21;HEADER;ENDSEC;DATA;#1=X(" + strings.Repeat("A(", 100_000), ErrSyntax},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseNestingLimit(t *testing.T) {
	data := func(depth int) []byte {
		return []byte("ISO-10303-21;HEADER;ENDSEC;DATA;#1=X(" +
			strings.Repeat("(", depth-1) + "1" + strings.Repeat(")", depth) +
			";ENDSEC;END-ISO-10303-21;")
	}

	f, err := Parse(data(maxNesting))
	require.NoError(t, err)
	assert.Len(t, f.Instances, 1)

	_, err = Parse(data(maxNesting + 1))
	assert.ErrorIs(t, err, ErrSyntax)
	assert.Contains(t, err.Error(), "nested deeper")
}

func TestParseContextCancelled(t *testing.T) {
	var b strings.Builder
	b.WriteString("ISO-10303-21;HEADER;ENDSEC;DATA;\n")
	for i := 1; i <= 5*ctxCheckEvery; i++ {
		fmt.Fprintf(&b, "#%d=CARTESIAN_POINT('',(%d.,0.,0.));\n", i, i)
	}
	b.WriteString("ENDSEC;END-ISO-10303-21;\n")
	src := []byte(b.String())

	f, err := ParseContext(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, f.Instances, 5*ctxCheckEvery)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ParseContext(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}
