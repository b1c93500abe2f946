// Package cli is the interactive relay client.
//
// On start it unlocks a local vault (sqlite, see package store) with a
// password read from the terminal; every saved channel profile keeps its API
// key and channel key sealed under that vault. The REPL then creates or joins
// channels, exchanges encrypted messages and drives capture sessions through
// package relay. "watch on" polls the active profile in the background.
//
// The REPL is started via App.Run, which blocks until the user exits.
package cli
