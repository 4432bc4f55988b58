package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.Empty(t, NewOptions().Validate())

	o := &Options{Users: map[string]string{
		"alice": "$2a$10$abcdefghijklmnopqrstuv",
		"bob":   "plain-pass",
	}}
	assert.Empty(t, o.Validate())
	assert.False(t, o.DemoMode())

	o.Users["carol"] = ""
	o.Users[""] = "x"
	errs := o.Validate()
	assert.Len(t, errs, 2)
}

func TestIsHashed(t *testing.T) {
	assert.True(t, IsHashed("$2a$10$abcdefghijklmnopqrstuv"))
	assert.True(t, IsHashed("$2b$12$abc"))
	assert.False(t, IsHashed("plain-pass"))
	assert.False(t, IsHashed(""))
}
