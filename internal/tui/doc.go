// Package tui renders the dashboard view model in the terminal with
// Bubble Tea and Lip Gloss.
//
// Render is a pure function of a view.Model and a width; the Bubble Tea
// program only decides when to call it and turns key presses into
// dashboard actions.
package tui
