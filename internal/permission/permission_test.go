package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_PlusImplies(t *testing.T) {
	for _, p := range All {
		s := NewSet().Plus(p)
		assert.True(t, s.Implies(p), "plus(%s) must imply %s", p, p)
	}
}

func TestSet_BaseImpliesSelfVariant(t *testing.T) {
	tests := []struct {
		base Permission
		self Permission
	}{
		{AdminRead, AdminReadSelf},
		{AdminWrite, AdminWriteSelf},
	}
	for _, tt := range tests {
		t.Run(string(tt.base), func(t *testing.T) {
			s := NewSet(tt.base)
			assert.True(t, s.Implies(tt.self))
			// The reverse never holds.
			assert.False(t, NewSet(tt.self).Implies(tt.base))
		})
	}
}

func TestSet_MinusKeepsImpliedVariant(t *testing.T) {
	// ADMIN_WRITE_SELF survives its own removal while ADMIN_WRITE remains.
	s := NewSet(AdminWrite, AdminWriteSelf).Minus(AdminWriteSelf)
	assert.True(t, s.Implies(AdminWriteSelf))

	// Without the implying base, removal is effective.
	s = NewSet(AdminWriteSelf).Minus(AdminWriteSelf)
	assert.False(t, s.Implies(AdminWriteSelf))
}

func TestSet_MinusDoesNotMutate(t *testing.T) {
	s := NewSet(AdminCreate, UserRead)
	_ = s.Minus(AdminCreate)
	assert.True(t, s.Implies(AdminCreate))
}

func TestSet_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		set  Set
	}{
		{"empty", NewSet()},
		{"single", NewSet(AdminCreate)},
		{"pair", NewSet(UserRead, UserWrite)},
		{"self variants", NewSet(AdminReadSelf, AdminWriteSelf)},
		{"everything", NewSet(All...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseSet(tt.set.Format())
			require.NoError(t, err)
			assert.True(t, parsed.Equal(tt.set))
		})
	}
}

func TestSet_FormatIsSorted(t *testing.T) {
	a := NewSet(UserWrite, AdminCreate).Format()
	b := NewSet(AdminCreate, UserWrite).Format()
	assert.Equal(t, a, b)
	assert.Equal(t, "ADMIN_CREATE,USER_WRITE", a)
}

func TestParseSet_UnknownName(t *testing.T) {
	_, err := ParseSet("ADMIN_CREATE,BOGUS")
	require.Error(t, err)
}

func TestSet_Missing(t *testing.T) {
	s := NewSet(AdminCreate)
	missing := s.Missing([]Permission{AdminCreate, AdminWrite, UserRead})
	assert.Equal(t, []Permission{AdminWrite, UserRead}, missing)
}

func TestSet_ClosureOrder(t *testing.T) {
	s := NewSet(AdminRead, AdminWrite)
	assert.Equal(t, []Permission{AdminRead, AdminReadSelf, AdminWrite, AdminWriteSelf}, s.Closure())
}
