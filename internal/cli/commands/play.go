// Copyright 2024 ledcat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ledcat/internal/cache"
	"ledcat/internal/common"
	"ledcat/internal/config"
	"ledcat/internal/decode"
	"ledcat/internal/playback"
	"ledcat/internal/sink"
)

var playCmd = &cobra.Command{
	Use:   "play [flags] <file|dir|->...",
	Short: "Play frames from files, directories or standard input",
	Long: `Reads every source in order and sends its frames to the sink.

A source is a file, a directory (its files in lexical order) or "-" for
standard input. Raw sources hold frames back to back; otherwise sources are
decoded as images (png, jpeg, gif, bmp, tiff, webp).

Frames are cached per source: a source played before is shown from memory
as a single still frame. Use --no-cache to always read from the source.

Examples:
  ledcat play -d 16x8 image.png
  ledcat play -d 16x8 -L frames/
  cat frames.raw | ledcat play -r -d 16x8 -o /dev/spidev0.0 -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlay,
}

var (
	playNoCache    bool
	playDimensions dimensions
	playLoop       bool
	playFPS        int
	playRaw        bool
	playFormat     string
	playOutput     string
	playNull       bool
	playCacheFile  string
)

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().BoolVarP(&playNoCache, "no-cache", "n", false, "Don't use the frame cache")
	playCmd.Flags().VarP(&playDimensions, "dimensions", "d", "Frame dimensions in pixels")
	playCmd.Flags().BoolVarP(&playLoop, "loop", "L", false, "Start over after the last source")
	playCmd.Flags().IntVarP(&playFPS, "fps", "F", 0, "Frames per second (0 plays as fast as possible)")
	playCmd.Flags().BoolVarP(&playRaw, "raw", "r", false, "Sources are raw frames")
	playCmd.Flags().StringVarP(&playFormat, "format", "f", "", `Pixel format of frames, e.g. "RGB u8"`)
	playCmd.Flags().StringVarP(&playOutput, "output", "o", "", `Sink path ("-" is stdout)`)
	playCmd.Flags().BoolVar(&playNull, "null", false, "Discard frames instead of writing them")
	playCmd.Flags().StringVar(&playCacheFile, "cache-file", "", "Restore and save the frame cache here")
}

// dimensions is a WxH flag value.
type dimensions struct {
	width, height int
}

var _ pflag.Value = (*dimensions)(nil)

func (d *dimensions) String() string {
	if d.width == 0 && d.height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", d.width, d.height)
}

func (d *dimensions) Set(s string) error {
	if s == "" {
		*d = dimensions{}
		return nil
	}
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return fmt.Errorf("%q: want WxH: %w", s, common.ErrInvalidDimensions)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return fmt.Errorf("%q: bad width: %w", s, common.ErrInvalidDimensions)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return fmt.Errorf("%q: bad height: %w", s, common.ErrInvalidDimensions)
	}
	d.width, d.height = width, height
	return nil
}

func (d *dimensions) Type() string {
	return "WxH"
}

// applyPlayFlags overrides settings with the flags given on the command line.
func applyPlayFlags(flags *pflag.FlagSet, s *config.Settings) {
	if flags.Changed("no-cache") && playNoCache {
		s.SetCacheEnabled(false)
	}
	if flags.Changed("dimensions") {
		s.Width, s.Height = playDimensions.width, playDimensions.height
	}
	if flags.Changed("loop") {
		s.Loop = playLoop
	}
	if flags.Changed("fps") {
		s.FPS = playFPS
	}
	if flags.Changed("raw") {
		s.Raw = playRaw
	}
	if flags.Changed("format") {
		s.PixelFormat = playFormat
	}
	if flags.Changed("output") {
		s.Sink.Type = string(sink.KindFile)
		s.Sink.Path = playOutput
	}
	if flags.Changed("null") && playNull {
		s.Sink.Type = string(sink.KindNull)
	}
	if flags.Changed("cache-file") {
		s.Cache.File = playCacheFile
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	applyPlayFlags(cmd.Flags(), settings)
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := setupLogging(settings); err != nil {
		return err
	}

	if settings.Width <= 0 || settings.Height <= 0 {
		return fmt.Errorf("set --dimensions or width/height in settings: %w", common.ErrInvalidDimensions)
	}
	format, err := decode.ParsePixelFormat(settings.PixelFormat)
	if err != nil {
		return err
	}
	frameSize, err := decode.FrameSize(settings.Width, settings.Height, format)
	if err != nil {
		return err
	}

	opener := playback.NewOSOpener()
	sources, err := opener.ResolveSources(args, settings.Ignore)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return common.ErrNoSources
	}

	policy, err := cache.ParseDuplicatePolicy(settings.Cache.Duplicates)
	if err != nil {
		return err
	}
	frames := cache.New(cache.WithDuplicatePolicy(policy))
	frames.SetEnabled(settings.CacheEnabled())
	defer frames.Close()

	caching := frames.Enabled()
	if caching && settings.Cache.File != "" {
		n, err := cache.LoadSnapshot(settings.Cache.File, frames, frameSize, opener.Stat)
		if err != nil {
			log.WithError(err).Warnf("ignoring cache file %s", settings.Cache.File)
		} else {
			log.Debugf("[Play] restored %d frames from %s", n, settings.Cache.File)
		}
	}

	out, err := sink.Open(sink.Kind(settings.Sink.Type), settings.Sink.Path, config.LockDir())
	if err != nil {
		return err
	}
	defer out.Close()

	deps := playback.Deps{
		Cache:  frames,
		Opener: opener,
		Sink:   out,
		Pacer:  playback.NewPacer(settings.FPS),
	}
	if !settings.Raw {
		deps.Decoder = &decode.Decoder{Width: settings.Width, Height: settings.Height, Format: format}
	}

	log.Debugf("[Play] %d sources, %dx%d %s, %d bytes per frame",
		len(sources), settings.Width, settings.Height, format, frameSize)

	summary, err := playback.New(playback.Config{
		Sources:        sources,
		Loop:           settings.Loop,
		Caching:        caching,
		FrameSize:      frameSize,
		Raw:            settings.Raw,
		ReportInterval: settings.ReportInterval,
	}, deps).Run(cmd.Context())
	if err != nil {
		return err
	}

	if caching && settings.Cache.File != "" {
		if n, err := cache.SaveSnapshot(settings.Cache.File, frames, opener.Stat); err != nil {
			log.WithError(err).Warnf("failed to save cache file %s", settings.Cache.File)
		} else {
			log.Debugf("[Play] saved %d frames to %s", n, settings.Cache.File)
		}
	}

	log.Infof("%d frames shown (%d from cache), %d sources failed",
		summary.Frames, summary.CacheHits, summary.FailedSources)
	return nil
}
