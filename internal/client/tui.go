package client

import (
	"fmt"
	"math"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dan0net/worldify-multiplayer/internal/client/sim"
	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// frameMsg delivers the loop's latest View into the Bubble Tea update cycle.
type frameMsg View

// doneMsg tells the model the loop exited.
type doneMsg struct{ err error }

// Model is the Bubble Tea model for the terminal observer: a top-down map of
// the room plus a status line. Movement keys write into the shared
// ControlState; the loop samples them on its own clock.
type Model struct {
	loop     *Loop
	controls *ControlState

	view     View
	piece    protocol.PieceType
	quitting bool
	loopErr  error
}

// NewModel creates the observer model.
func NewModel(loop *Loop, controls *ControlState) Model {
	return Model{loop: loop, controls: controls}
}

// Frame converts a loop View into a message for Program.Send.
func Frame(v View) tea.Msg { return frameMsg(v) }

// Done converts the loop's exit into a message for Program.Send.
func Done(err error) tea.Msg { return doneMsg{err: err} }

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles key input and frame delivery.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.view = View(msg)
		return m, nil

	case doneMsg:
		m.loopErr = msg.err
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "w":
		m.controls.ToggleButton(protocol.ButtonForward)
	case "s":
		m.controls.ToggleButton(protocol.ButtonBack)
	case "a":
		m.controls.ToggleButton(protocol.ButtonLeft)
	case "d":
		m.controls.ToggleButton(protocol.ButtonRight)
	case "W":
		m.controls.ToggleButton(protocol.ButtonSprint)
	case " ":
		m.controls.ToggleButton(protocol.ButtonJump)

	case "left":
		m.controls.Turn(-math.Pi / 16)
	case "right":
		m.controls.Turn(math.Pi / 16)

	case "tab":
		m.piece = (m.piece + 1) % 5

	case "b":
		// Build on the grid cell under the predicted position.
		x, z := worldToGrid(m.view.Position)
		m.loop.PlaceBuild(m.piece, x, z, 0)
	}
	return m, nil
}

// View renders the observer.
func (m Model) View() string {
	if m.quitting {
		if m.loopErr != nil {
			return fmt.Sprintf("disconnected: %v\n", m.loopErr)
		}
		return "disconnected\n"
	}

	var b strings.Builder
	v := m.view

	fmt.Fprintf(&b, "room %s  player %d  %s  tick %d  players %d  rtt %s\n",
		v.RoomID, v.PlayerID, v.Status, v.Tick, v.PlayerCount, v.RTT.Round(1e6))
	fmt.Fprintf(&b, "pos (%.1f, %.1f, %.1f)  yaw %.2f  drift %.2f  pieces %d  buildSeq %d\n",
		v.Position.X, v.Position.Y, v.Position.Z, v.Yaw, v.Drift, v.Pieces, v.Watermark)
	if v.LastError != 0 {
		fmt.Fprintf(&b, "last server error: %d\n", v.LastError)
	}
	b.WriteString("\n")

	ids := make([]uint16, 0, len(v.Remotes))
	for id := range v.Remotes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p := v.Remotes[id]
		fmt.Fprintf(&b, "  player %-3d (%.1f, %.1f, %.1f) yaw %.2f\n",
			id, p.Position.X, p.Position.Y, p.Position.Z, p.Yaw)
	}
	if len(ids) == 0 {
		b.WriteString("  (no other players)\n")
	}

	fmt.Fprintf(&b, "\nwasd move  arrows turn  b build (%s)  tab piece  q quit\n", pieceName(m.piece))
	return b.String()
}

func pieceName(p protocol.PieceType) string {
	switch p {
	case protocol.PieceFloor:
		return "floor"
	case protocol.PieceWall:
		return "wall"
	case protocol.PieceSlope:
		return "slope"
	case protocol.PiecePillar:
		return "pillar"
	case protocol.PieceRoof:
		return "roof"
	}
	return "?"
}

// worldToGrid maps a world position onto the build grid, clamping at the
// edges so building at the boundary targets a real cell.
func worldToGrid(pos sim.Vec3) (uint16, uint16) {
	clamp := func(f float32) uint16 {
		if f < 0 {
			return 0
		}
		if f > math.MaxUint16 {
			return math.MaxUint16
		}
		return uint16(f)
	}
	return clamp(pos.X), clamp(pos.Z)
}
