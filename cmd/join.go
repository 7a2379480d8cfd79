package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Emmyhack/TFN/internal/conference"
	"github.com/Emmyhack/TFN/internal/config"
	"github.com/Emmyhack/TFN/internal/media"
	"github.com/Emmyhack/TFN/internal/peer"
	"github.com/Emmyhack/TFN/internal/roomid"
	"github.com/Emmyhack/TFN/internal/ui"
)

var (
	flagJoinName      string
	flagJoinEmail     string
	flagJoinDomain    string
	flagJoinSTUN      string
	flagJoinTURN      string
	flagJoinTURNUser  string
	flagJoinTURNPass  string
	flagJoinRelay     bool
	flagJoinReconnect int
)

var joinCmd = &cobra.Command{
	Use:     "join [room-id]",
	Aliases: []string{"j"},
	Short:   "Join a conference room",
	Long: `Join a conference room as a terminal participant. With no room id a
fresh memorable one is generated and printed so others can join you.

Examples:
  tfn join gentle-otter-nebula --name Alice
  tfn join --name Bob --reconnect 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := ""
		if len(args) == 1 {
			roomID = args[0]
		}
		return joinConference(roomID)
	},
}

func joinConference(roomID string) error {
	cfg, err := config.Load(config.Options{
		Domain:            flagJoinDomain,
		STUNServer:        flagJoinSTUN,
		TURNServer:        flagJoinTURN,
		TURNUser:          flagJoinTURNUser,
		TURNPass:          flagJoinTURNPass,
		ForceRelay:        flagJoinRelay,
		ReconnectAttempts: flagJoinReconnect,
	})
	if err != nil {
		return err
	}

	if roomID == "" {
		roomID = roomid.New()
	}

	name := flagJoinName
	if name == "" {
		name = os.Getenv("TFN_NAME")
	}
	if name == "" {
		return fmt.Errorf("a display name is required (--name or TFN_NAME)")
	}

	// Terminal clients have no platform capture; they join with
	// synthetic tracks and still negotiate full peer sessions.
	ctrl := conference.New(cfg, media.SyntheticDevice{}, peer.NewPionTransportFactory(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctrl.JoinRoom(ctx, roomID, conference.UserInfo{Name: name, Email: flagJoinEmail}); err != nil {
		return err
	}
	defer ctrl.LeaveRoom()

	info := ui.RoomInfo{
		RoomID:   ctrl.RoomID(),
		Title:    ctrl.Title(),
		RoomLink: cfg.GetRoomLink(ctrl.RoomID()),
	}
	fmt.Println(info.View())
	if ctrl.IsHost() {
		ui.PrintInfo("You are the host of this room")
	}
	ui.PrintInfo("Commands: m = toggle audio, v = toggle video, s = toggle screen share, q = leave")

	watchRoster(ctrl)
	return runCommandLoop(ctrl)
}

// watchRoster re-renders the participant table whenever the registry
// changes.
func watchRoster(ctrl *conference.Controller) {
	updates, _ := ctrl.Registry().Subscribe()
	go func() {
		for range updates {
			rows := make([]ui.ParticipantRow, 0)
			for _, p := range ctrl.Registry().List() {
				rows = append(rows, ui.ParticipantRow{
					Name:     p.Name,
					Host:     p.IsHost,
					Muted:    p.IsMuted,
					VideoOff: p.IsVideoOff,
					Speaking: p.IsSpeaking,
					HasMedia: p.Stream != nil,
				})
			}
			ui.RenderParticipantTable(rows)
		}
	}()
}

// runCommandLoop reads single-letter intents from stdin until the user
// leaves or interrupts.
func runCommandLoop(ctrl *conference.Controller) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	sharing := false
	for {
		select {
		case <-sig:
			ui.PrintInfo("Leaving room...")
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch line {
			case "m":
				if ctrl.ToggleAudio() {
					ui.PrintInfo("Microphone muted")
				} else {
					ui.PrintInfo("Microphone live")
				}
			case "v":
				if ctrl.ToggleVideo() {
					ui.PrintInfo("Camera off")
				} else {
					ui.PrintInfo("Camera on")
				}
			case "s":
				if sharing {
					if err := ctrl.StopScreenShare(); err != nil {
						ui.PrintError(err.Error())
						continue
					}
					sharing = false
					ui.PrintInfo("Screen share stopped")
				} else {
					if err := ctrl.StartScreenShare(); err != nil {
						ui.PrintError(err.Error())
						continue
					}
					sharing = true
					ui.PrintInfo("Screen share started")
				}
			case "q":
				ui.PrintInfo("Leaving room...")
				return nil
			case "":
			default:
				ui.PrintWarning(fmt.Sprintf("Unknown command %q", line))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagJoinName, "name", "n", "", "Display name")
	joinCmd.Flags().StringVarP(&flagJoinEmail, "email", "e", "", "Contact email (session identification only)")
	joinCmd.Flags().StringVar(&flagJoinDomain, "domain", "", "Custom coordinator domain")
	joinCmd.Flags().StringVarP(&flagJoinSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagJoinTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVar(&flagJoinTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagJoinTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagJoinRelay, "relay", "r", false, "Force relay mode")
	joinCmd.Flags().IntVar(&flagJoinReconnect, "reconnect", 3, "Reconnect attempts after signaling loss (0 disables)")
}
