// Package connect4 implements the rules.Game capability set for
// Connect-4: a 7-column by 6-row grid, four-in-a-row wins, two players
// alternating starting with player 0.
//
// Board layout and win-check order are taken from the original Connect-4
// rules (column-major indexing, vertical/horizontal/diagonal-up/
// diagonal-down check order, tie only once every column's top cell is
// filled) rather than reinvented.
package connect4

import (
	"encoding/json"

	"gameplay/internal/rules"
)

const (
	Tag  = "connect4"
	Cols = 7
	Rows = 6
	Size = Cols * Rows
)

// State is the wire/storage shape of a Connect-4 board: 42 cells in
// column-major order (index = col*Rows + row, row 0 at the bottom), each
// either null or a player index, plus whose turn is next.
type State struct {
	Board      [Size]*int `json:"board"`
	NextPlayer int        `json:"next_player"`
}

// Action is the wire shape of a Connect-4 move.
type Action struct {
	Column int `json:"column"`
}

// Game implements rules.Game for Connect-4.
type Game struct{}

// New returns a Connect-4 rules.Game implementation.
func New() *Game { return &Game{} }

func (g *Game) Tag() string { return Tag }

func (g *Game) InitialState() []byte {
	s := State{NextPlayer: 0}
	b, _ := json.Marshal(s)
	return b
}

func get(board *[Size]*int, col, row int) *int {
	return board[col*Rows+row]
}

func set(board *[Size]*int, col, row, player int) {
	p := player
	board[col*Rows+row] = &p
}

// topOccupied reports whether the top cell of col (row Rows-1) is filled.
func topOccupied(board *[Size]*int, col int) bool {
	return get(board, col, Rows-1) != nil
}

func parseState(state []byte) (State, error) {
	var s State
	if err := json.Unmarshal(state, &s); err != nil {
		return State{}, err
	}
	return s, nil
}

func parseAction(action []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(action, &a); err != nil {
		return Action{}, err
	}
	return a, nil
}

func (g *Game) ValidAction(state []byte, action []byte) bool {
	s, err := parseState(state)
	if err != nil {
		return false
	}
	a, err := parseAction(action)
	if err != nil {
		return false
	}
	return validAction(&s.Board, a.Column)
}

func validAction(board *[Size]*int, column int) bool {
	if column < 0 || column >= Cols {
		return false
	}
	return !topOccupied(board, column)
}

func (g *Game) ApplyAction(state []byte, action []byte) ([]byte, error) {
	s, err := parseState(state)
	if err != nil {
		return nil, err
	}
	a, err := parseAction(action)
	if err != nil {
		return nil, &rules.RuleError{Kind: rules.KindOutOfRange, Index: -1}
	}

	if a.Column < 0 || a.Column >= Cols {
		return nil, &rules.RuleError{Kind: rules.KindUnknownColumn, Index: a.Column}
	}
	if topOccupied(&s.Board, a.Column) {
		return nil, &rules.RuleError{Kind: rules.KindFullColumn, Index: a.Column}
	}

	// Place in the lowest empty row of the chosen column. Copy the board
	// first so a failure path (caught above) never mutates the caller's
	// state.
	next := s.Board
	for row := 0; row < Rows; row++ {
		if get(&next, a.Column, row) == nil {
			set(&next, a.Column, row, s.NextPlayer)
			break
		}
	}

	out := State{
		Board:      next,
		NextPlayer: (s.NextPlayer + 1) % 2,
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (g *Game) Status(state []byte) (rules.Status, error) {
	s, err := parseState(state)
	if err != nil {
		return rules.Status{}, err
	}
	if winner, ok := checkWinner(&s.Board); ok {
		return rules.Status{Over: true, HasWinner: true, Winner: winner}, nil
	}
	if boardFull(&s.Board) {
		return rules.Status{Over: true, HasWinner: false}, nil
	}
	return rules.Status{Over: false, NextPlayer: s.NextPlayer}, nil
}

// boardFull reports whether every column's top cell is occupied, i.e. no
// more moves are possible.
func boardFull(board *[Size]*int) bool {
	for col := 0; col < Cols; col++ {
		if !topOccupied(board, col) {
			return false
		}
	}
	return true
}

// check4 returns the common player index if all four cells hold the same
// non-nil player, else (0, false).
func check4(a, b, c, d *int) (int, bool) {
	if a == nil || b == nil || c == nil || d == nil {
		return 0, false
	}
	if *a == *b && *b == *c && *c == *d {
		return *a, true
	}
	return 0, false
}

// checkWinner scans vertical, horizontal, diagonal-up, then diagonal-down
// lines of four, matching the original implementation's check order.
func checkWinner(board *[Size]*int) (int, bool) {
	// Vertical: 4 consecutive rows within a column.
	for col := 0; col < Cols; col++ {
		for row := 0; row <= Rows-4; row++ {
			if w, ok := check4(
				get(board, col, row),
				get(board, col, row+1),
				get(board, col, row+2),
				get(board, col, row+3),
			); ok {
				return w, true
			}
		}
	}
	// Horizontal: 4 consecutive columns within a row.
	for row := 0; row < Rows; row++ {
		for col := 0; col <= Cols-4; col++ {
			if w, ok := check4(
				get(board, col, row),
				get(board, col+1, row),
				get(board, col+2, row),
				get(board, col+3, row),
			); ok {
				return w, true
			}
		}
	}
	// Diagonal, bottom-left to top-right.
	for col := 0; col <= Cols-4; col++ {
		for row := 0; row <= Rows-4; row++ {
			if w, ok := check4(
				get(board, col, row),
				get(board, col+1, row+1),
				get(board, col+2, row+2),
				get(board, col+3, row+3),
			); ok {
				return w, true
			}
		}
	}
	// Diagonal, top-left to bottom-right.
	for col := 0; col <= Cols-4; col++ {
		for row := Rows - 1; row >= 3; row-- {
			if w, ok := check4(
				get(board, col, row),
				get(board, col+1, row-1),
				get(board, col+2, row-2),
				get(board, col+3, row-3),
			); ok {
				return w, true
			}
		}
	}
	return 0, false
}
