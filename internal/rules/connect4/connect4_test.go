package connect4

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"gameplay/internal/rules"
)

func col(c int) []byte {
	b, _ := json.Marshal(Action{Column: c})
	return b
}

func TestInitialStateStatus(t *testing.T) {
	g := New()
	s := g.InitialState()
	status, err := g.Status(s)
	require.NoError(t, err)
	require.False(t, status.Over)
	require.Equal(t, 0, status.NextPlayer)
}

func TestApplyActionUnknownColumn(t *testing.T) {
	g := New()
	_, err := g.ApplyAction(g.InitialState(), col(7))
	require.Error(t, err)
	re, ok := err.(*rules.RuleError)
	require.True(t, ok)
	require.Equal(t, rules.KindUnknownColumn, re.Kind)
}

func TestApplyActionFullColumn(t *testing.T) {
	g := New()
	state := g.InitialState()
	// Fill column 0 with alternating players (so no 4-in-a-row forms),
	// require all 6 drops to succeed, and expect the 7th to fail.
	for i := 0; i < Rows; i++ {
		var err error
		state, err = g.ApplyAction(state, col(0))
		require.NoError(t, err)
	}
	_, err := g.ApplyAction(state, col(0))
	require.Error(t, err)
	re, ok := err.(*rules.RuleError)
	require.True(t, ok)
	require.Equal(t, rules.KindFullColumn, re.Kind)
}

func TestApplyActionDoesNotMutateOnFailure(t *testing.T) {
	g := New()
	state := g.InitialState()
	before := append([]byte(nil), state...)
	_, err := g.ApplyAction(state, col(9))
	require.Error(t, err)
	require.Equal(t, before, state)
}

// TestDiagonalWin plays columns 0,1,1,2,2,3,2,3,3,5,3 with players
// alternating from 0. Player 0 ends up on (col,row) (0,0),(1,1),(2,2),(3,3):
// a bottom-left-to-top-right diagonal win for player 0 after turn 11.
func TestDiagonalWin(t *testing.T) {
	g := New()
	state := g.InitialState()
	moves := []int{0, 1, 1, 2, 2, 3, 2, 3, 3, 5, 3}
	var err error
	for _, c := range moves {
		state, err = g.ApplyAction(state, col(c))
		require.NoError(t, err)
	}
	status, err := g.Status(state)
	require.NoError(t, err)
	require.True(t, status.Over)
	require.True(t, status.HasWinner)
	require.Equal(t, 0, status.Winner)
}

// TestTieFillsBoardNoWinner checks Status on a full board constructed so
// that value(col,row) = ((col+2*row) mod 4) < 2 ? 0 : 1. Any 4 cells along
// a vertical, horizontal, or either diagonal direction span 4 consecutive
// values of (col+2*row) mod 4 (mod a constant step), which always
// includes both buckets {0,1} and {2,3} — so no line of 4 is ever
// monochromatic, while every column is completely full.
func TestTieFillsBoardNoWinner(t *testing.T) {
	g := New()
	var s State
	for c := 0; c < Cols; c++ {
		for r := 0; r < Rows; r++ {
			v := (c + 2*r) % 4
			p := 0
			if v >= 2 {
				p = 1
			}
			set(&s.Board, c, r, p)
		}
	}
	state, err := json.Marshal(s)
	require.NoError(t, err)

	status, err := g.Status(state)
	require.NoError(t, err)
	require.True(t, status.Over)
	require.False(t, status.HasWinner)
}

func TestValidActionRejectsFullColumn(t *testing.T) {
	g := New()
	state := g.InitialState()
	for i := 0; i < Rows; i++ {
		var err error
		state, err = g.ApplyAction(state, col(0))
		require.NoError(t, err)
	}
	require.False(t, g.ValidAction(state, col(0)))
	require.True(t, g.ValidAction(state, col(1)))
}

func TestBoardMajorIndexingRoundTrip(t *testing.T) {
	g := New()
	state, err := g.ApplyAction(g.InitialState(), col(3))
	require.NoError(t, err)
	var s State
	require.NoError(t, json.Unmarshal(state, &s))
	// column 3, row 0 (bottom) is index 3*Rows+0 = 18.
	require.NotNil(t, s.Board[18])
	require.Equal(t, 0, *s.Board[18])
	require.Equal(t, 1, s.NextPlayer)
}
