package contacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContactsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeContactsFile(t, `
[[contact]]
name = "Emergency dispatch"
phone = "+78001234567"
note = "24/7"

[[contact]]
name = "Elevator service"
phone = "+78007654321"
`)

	dir, err := Load(path)
	require.NoError(t, err)
	require.Len(t, dir.Contacts, 2)
	assert.Equal(t, "Emergency dispatch", dir.Contacts[0].Name)
	assert.Equal(t, "24/7", dir.Contacts[0].Note)
}

func TestLoad_EmptyPath(t *testing.T) {
	dir, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, dir.Contacts)
}

func TestLoad_MissingName(t *testing.T) {
	path := writeContactsFile(t, `
[[contact]]
phone = "+78001234567"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	dir := &Directory{Contacts: []Contact{
		{Name: "Emergency dispatch", Phone: "+78001234567", Note: "24/7"},
	}}

	out := dir.Render()
	assert.Contains(t, out, "Emergency dispatch")
	assert.Contains(t, out, "+78001234567")
	assert.Contains(t, out, "24/7")

	empty := (&Directory{}).Render()
	assert.Contains(t, empty, "No contacts")
}
