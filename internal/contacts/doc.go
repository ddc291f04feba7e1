// Package contacts loads the curated "useful contacts" list from a TOML
// file and renders it for the main menu. The file is operator-edited and
// read once at startup.
package contacts
