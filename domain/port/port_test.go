package port

import (
	"errors"
	"math"
	"testing"

	"amsprobe/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalogDefaults(t *testing.T) {
	out, err := New("vout", AnalogOutput, "", Constraint{})
	require.NoError(t, err)
	assert.True(t, math.IsInf(out.LowerBound(), -1))
	assert.True(t, math.IsInf(out.UpperBound(), 1))
	assert.True(t, math.IsInf(out.AbsTol(), 1))
	assert.Equal(t, 0.0, out.GainTol())
	assert.Equal(t, Output, out.Direction())
	assert.True(t, out.IsValid(1e30))
}

func TestAnalogInputNeedsFiniteBounds(t *testing.T) {
	_, err := New("vin", AnalogInput, "", Constraint{LowerBound: Float(0)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidPort))

	p, err := New("vin", AnalogInput, "", Constraint{LowerBound: Float(-1), UpperBound: Float(3)})
	require.NoError(t, err)
	assert.Equal(t, 4.0, p.PeakToPeak())
	assert.Equal(t, 4.0, p.Scale())
	assert.True(t, p.IsValid(-1))
	assert.True(t, p.IsValid(3))
	assert.False(t, p.IsValid(3.01))
}

func TestPinnedAnalogValue(t *testing.T) {
	p, err := New("vref", AnalogInput, "", Constraint{Pinned: true, DefaultValue: 0.5})
	require.NoError(t, err)
	v, ok := p.PinnedValue()
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)

	_, err = New("vref", AnalogInput, "", Constraint{
		Pinned: true, DefaultValue: 2, LowerBound: Float(0), UpperBound: Float(1),
	})
	assert.Error(t, err)
}

func TestAllowedCodes(t *testing.T) {
	tests := []struct {
		name      string
		c         Constraint
		want      []int
		wantErrIs error
	}{
		{"binary", Constraint{BitWidth: 2}, []int{0, 1, 2, 3}, nil},
		{"binary prohibited", Constraint{BitWidth: 2, Prohibited: []int{1, 3}}, []int{0, 2}, nil},
		{"thermometer", Constraint{BitWidth: 3, Encoding: Thermometer}, []int{0, 1, 3, 7}, nil},
		{"onehot", Constraint{BitWidth: 3, Encoding: OneHot}, []int{1, 2, 4}, nil},
		{"gray", Constraint{BitWidth: 2, Encoding: Gray}, []int{0, 1, 2, 3}, nil},
		{"pinned ignores prohibited", Constraint{BitWidth: 2, Pinned: true, DefaultValue: 3, Prohibited: []int{3}}, []int{3}, nil},
		{"default width", Constraint{}, []int{0, 1}, nil},
		{"all prohibited", Constraint{BitWidth: 1, Prohibited: []int{0, 1}}, nil, core.ErrNoAllowedCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("sel", DigitalMode, "", tt.c)
			if tt.wantErrIs != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErrIs))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Allowed())
		})
	}
}

func TestDigitalIsValid(t *testing.T) {
	p, err := New("sel", QuantizedAnalog, "", Constraint{BitWidth: 2, Prohibited: []int{2}})
	require.NoError(t, err)
	assert.True(t, p.IsValid(1))
	assert.False(t, p.IsValid(2))
	assert.False(t, p.IsValid(1.5))
	assert.False(t, p.IsValid(4))
}

func TestPinnedCodeOutOfRange(t *testing.T) {
	_, err := New("sel", DigitalMode, "", Constraint{BitWidth: 1, Pinned: true, DefaultValue: 2})
	assert.Error(t, err)
}

func TestParseKindAndEncoding(t *testing.T) {
	k, err := ParseKind(" AnalogInput ")
	require.NoError(t, err)
	assert.Equal(t, AnalogInput, k)
	_, err = ParseKind("bogus")
	assert.Error(t, err)

	e, err := ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, Binary, e)
	_, err = ParseEncoding("bcd")
	assert.Error(t, err)
}

func TestBitNames(t *testing.T) {
	assert.Equal(t, "ctl_3", SingleBitName("ctl", 3))
	assert.Equal(t, "ctl", BaseName("ctl_3"))
	assert.Equal(t, "ctl_a", BaseName("ctl_a"))
	base, bit, ok := SplitBitName("code_12")
	assert.True(t, ok)
	assert.Equal(t, "code", base)
	assert.Equal(t, 12, bit)
	_, _, ok = SplitBitName("vin")
	assert.False(t, ok)
}
