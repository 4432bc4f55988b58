package options

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

type stubOptions struct{ errs []error }

func (s *stubOptions) Validate() []error                  { return s.errs }
func (s *stubOptions) AddFlags(*pflag.FlagSet, ...string) {}

func TestJoin(t *testing.T) {
	assert.Equal(t, "", Join())
	assert.Equal(t, "", Join(""))
	assert.Equal(t, "a.", Join("a"))
	assert.Equal(t, "a.b.", Join("a", "b"))
}

func TestValidateAll(t *testing.T) {
	e1, e2 := errors.New("one"), errors.New("two")
	got := ValidateAll(&stubOptions{errs: []error{e1}}, nil, &stubOptions{}, &stubOptions{errs: []error{e2}})
	assert.Equal(t, []error{e1, e2}, got)
	assert.Empty(t, ValidateAll())
}
