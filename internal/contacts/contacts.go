// ABOUTME: Useful-contacts directory served from the main menu
// ABOUTME: Loads a hand-edited TOML file of names, phones, and notes

package contacts

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Contact is one entry in the useful-contacts list.
type Contact struct {
	Name  string `toml:"name"`
	Phone string `toml:"phone"`
	Note  string `toml:"note"`
}

// Directory holds the curated contact list shown to users.
type Directory struct {
	Contacts []Contact `toml:"contact"`
}

// Load reads a contacts file. A missing path yields an empty directory so
// the menu item degrades gracefully rather than failing startup.
func Load(path string) (*Directory, error) {
	if path == "" {
		return &Directory{}, nil
	}

	var dir Directory
	if _, err := toml.DecodeFile(path, &dir); err != nil {
		return nil, fmt.Errorf("parsing contacts file: %w", err)
	}

	for i, c := range dir.Contacts {
		if c.Name == "" {
			return nil, fmt.Errorf("contact %d: name is required", i+1)
		}
	}

	return &dir, nil
}

// Render formats the directory for a single outbound message.
func (d *Directory) Render() string {
	if len(d.Contacts) == 0 {
		return "No contacts are available right now."
	}

	var b strings.Builder
	b.WriteString("Useful contacts:\n")
	for _, c := range d.Contacts {
		b.WriteString("\n")
		b.WriteString(c.Name)
		if c.Phone != "" {
			b.WriteString(": ")
			b.WriteString(c.Phone)
		}
		if c.Note != "" {
			b.WriteString("\n  ")
			b.WriteString(c.Note)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
