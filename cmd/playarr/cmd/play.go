package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/internal/platform"
	"github.com/jmylchreest/playarr/internal/playback"
	"github.com/jmylchreest/playarr/internal/player"
)

var playCmd = &cobra.Command{
	Use:   "play [channel]",
	Short: "Resolve a stream and hand it to a player",
	Long: `Resolve a live channel or recorded video, select a quality and print
the playlist URL. With --player the URL is passed to that command as its
last argument; PLAYARR_PLAYER_PATH overrides where the binary is found.

The session stays up until interrupted, refreshing stream metadata and
reporting ad breaks.

Examples:
  playarr play somechannel --quality 720p
  playarr play --video 123456789 --player mpv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("video", "", "recorded video id to play instead of a live channel")
	playCmd.Flags().String("quality", "", "preferred quality: best, worst, audio_only or a name such as 720p")
	playCmd.Flags().String("player", "", "command to launch with the playlist URL")
}

func playIdentity(args []string, video string) (platform.Identity, error) {
	switch {
	case video != "" && len(args) > 0:
		return platform.Identity{}, errors.New("give either a channel or --video, not both")
	case video != "":
		return platform.Video(video), nil
	case len(args) == 1:
		return platform.Live(args[0]), nil
	}
	return platform.Identity{}, errors.New("a channel or --video is required")
}

func runPlay(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	video, _ := flags.GetString("video")
	id, err := playIdentity(args, video)
	if err != nil {
		return err
	}

	log := logger()
	a := newApp(cfg, log)

	opts := a.options()
	overrideString(flags, "quality", &opts.Quality)
	playerCmd, _ := flags.GetString("player")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher, err := player.NewLauncher(ctx, playerCmd, cmd.OutOrStdout(), log)
	if err != nil {
		return err
	}
	session, err := a.newSession(id, opts, launcher, playback.NewLogListener(log))
	if err != nil {
		return err
	}
	defer session.Stop()

	if err := session.Start(ctx); err != nil {
		if platform.IsIntegrityChallenge(err) {
			return fmt.Errorf("%w (set platform.integrity_token or platform.oauth_token)", err)
		}
		return err
	}

	select {
	case <-ctx.Done():
		log.Info("interrupted, stopping session", slog.String("session_id", session.ID()))
	case err := <-launcher.Exited():
		if err != nil && ctx.Err() == nil {
			observability.WithError(log, err).Warn("player exited")
		}
	}
	return nil
}
