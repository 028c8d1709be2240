package console

import (
	"fmt"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/kuredoro/snake_duel/core"
)

const (
	welcome    = `Welcome to snake duel.`
	navigation = `Enter join  s spectate  c create  v play the computer  q quit`
)

type LobbyActions struct {
	Join     func(core.RoomSummary)
	Spectate func(core.RoomSummary)
	Create   func(vsComputer bool)
	Quit     func()
}

// Lobby is the room list shown between games.
type Lobby struct {
	root   *tview.Flex
	table  *tview.Table
	status *tview.TextView

	rooms   []core.RoomSummary
	actions LobbyActions
}

var lobbyHeader = []string{"Room", "Players", "Locked", "Watching", "Mode"}

func NewLobby(actions LobbyActions) *Lobby {
	l := &Lobby{actions: actions}

	l.table = tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	l.table.SetBorder(true).SetTitle(" Rooms ")

	l.table.SetSelectedFunc(func(row, column int) {
		if rm, ok := l.roomAt(row); ok && l.actions.Join != nil {
			l.actions.Join(rm)
		}
	})

	l.table.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() != tcell.KeyRune {
			return ev
		}

		switch ev.Rune() {
		case 's':
			row, _ := l.table.GetSelection()
			if rm, ok := l.roomAt(row); ok && l.actions.Spectate != nil {
				l.actions.Spectate(rm)
			}
		case 'c', 'v':
			if l.actions.Create != nil {
				l.actions.Create(ev.Rune() == 'v')
			}
		case 'q':
			if l.actions.Quit != nil {
				l.actions.Quit()
			}
		default:
			return ev
		}

		return nil
	})

	l.status = tview.NewTextView().SetDynamicColors(true)

	// Create a frame for the subtitle and navigation infos.
	frame := tview.NewFrame(tview.NewBox()).
		SetBorders(0, 0, 0, 0, 0, 0).
		AddText(welcome, true, tview.AlignCenter, tcell.ColorGreen).
		AddText(navigation, true, tview.AlignCenter, tcell.ColorDarkMagenta)

	l.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(frame, 3, 0, false).
		AddItem(l.table, 0, 1, true).
		AddItem(l.status, 1, 0, false)

	l.SetRooms(nil)
	return l
}

func (l *Lobby) Primitive() tview.Primitive {
	return l.root
}

func (l *Lobby) Table() *tview.Table {
	return l.table
}

func (l *Lobby) roomAt(row int) (core.RoomSummary, bool) {
	if row < 1 || row > len(l.rooms) {
		return core.RoomSummary{}, false
	}

	return l.rooms[row-1], true
}

// SetRooms replaces the list, keeping the selection in range.
func (l *Lobby) SetRooms(rooms []core.RoomSummary) {
	l.rooms = append(l.rooms[:0], rooms...)

	l.table.Clear()
	for col, title := range lobbyHeader {
		l.table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(tcell.ColorYellow).
			SetAlign(tview.AlignCenter).
			SetSelectable(false).
			SetExpansion(1))
	}

	for i, rm := range l.rooms {
		row := i + 1

		id := rm.ID
		if len(id) > 8 {
			id = id[:8]
		}

		locked := ""
		if rm.HasPassword {
			locked = "yes"
		}

		mode := "duel"
		if rm.VsComputer {
			mode = "computer"
		}

		for col, text := range []string{id, fmt.Sprintf("%d/2", rm.PlayerCount), locked, strconv.Itoa(rm.Spectators), mode} {
			l.table.SetCell(row, col, tview.NewTableCell(text).
				SetAlign(tview.AlignCenter).
				SetExpansion(1))
		}
	}

	if row, _ := l.table.GetSelection(); row < 1 || row > len(l.rooms) {
		l.table.Select(1, 0)
	}
}

// SetStatus shows a one line message under the list.
func (l *Lobby) SetStatus(text string) {
	l.status.SetText(text)
}

// Prompt asks for one line of text, for usernames and room passwords.
func Prompt(label string, mask bool, submit func(text string), cancel func()) *tview.Form {
	form := tview.NewForm()
	form.AddInputField(label, "", 24, nil, nil)

	field := form.GetFormItem(0).(*tview.InputField)
	if mask {
		field.SetMaskCharacter('*')
	}

	form.AddButton("OK", func() {
		submit(field.GetText())
	})
	if cancel != nil {
		form.AddButton("Cancel", cancel)
		form.SetCancelFunc(cancel)
	}

	form.SetBorder(true).SetTitle(" " + label + " ")
	return form
}
