package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ParticipantRow is one row of the participant table.
type ParticipantRow struct {
	Name     string
	Host     bool
	Muted    bool
	VideoOff bool
	Speaking bool
	HasMedia bool
}

// ParticipantTableView renders the room roster.
func ParticipantTableView(rows []ParticipantRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("No other participants yet")
	}

	headers := []string{"#", "Name", "Audio", "Video", "Media"}

	var body [][]string
	for i, r := range rows {
		name := r.Name
		if r.Host {
			name = fmt.Sprintf("%s %s", name, IconHost)
		}
		if r.Speaking {
			name = fmt.Sprintf("%s %s", name, IconSpeaking)
		}

		audio := IconMic
		if r.Muted {
			audio = IconMicOff
		}
		video := IconCam
		if r.VideoOff {
			video = IconCamOff
		}
		mediaState := MutedStyle.Render("negotiating")
		if r.HasMedia {
			mediaState = "connected"
		}

		body = append(body, []string{fmt.Sprintf("%d", i+1), name, audio, video, mediaState})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(body...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RenderParticipantTable outputs the roster directly to stdout.
func RenderParticipantTable(rows []ParticipantRow) {
	fmt.Println(ParticipantTableView(rows))
}

// RoomInfo is the banner shown after joining a room.
type RoomInfo struct {
	RoomID   string
	Title    string
	RoomLink string
}

func (r *RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s %s\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconRoom, r.Title,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)

	return boxStyle.Render(content)
}
