package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/client"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/config"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"
)

// stage-cli uploads a photo, submits a staging job and polls it to
// completion.
//
//	stage-cli -file room.jpg -style scandinavian
//	stage-cli -file room.jpg -room-id <id> -fix-wb
func main() {
	var (
		server    = flag.String("server", "http://localhost:8090", "API server base URL")
		file      = flag.String("file", "", "image file to stage (required)")
		roomID    = flag.String("room-id", "", "room to upload into (optional)")
		roomType  = flag.String("room-type", "", "room type, e.g. living_room (defaults to the room's type)")
		style     = flag.String("style", staging.StyleModern, "style preset: "+strings.Join(staging.StylePresets, ", "))
		fixWB     = flag.Bool("fix-wb", false, "fix white balance")
		noDecor   = flag.Bool("no-wall-decorations", false, "disable wall decorations")
		includeTV = flag.Bool("include-tv", false, "include a TV in the staged render")
		timeout   = flag.Duration("timeout", 10*time.Minute, "maximum time to wait for the result")
	)
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("stage-cli: failed to read %s: %v", *file, err)
	}

	api := client.NewClient(*server)
	ctx := context.Background()

	image, err := api.UploadImage(ctx, filepath.Base(*file), data, *roomID)
	if err != nil {
		log.Fatalf("stage-cli: upload failed: %v", err)
	}
	fmt.Printf("uploaded %s as image %s\n", filepath.Base(*file), image.ID)

	var room *models.Room
	if image.RoomID != nil {
		room, err = api.GetRoom(ctx, *image.RoomID)
		if err != nil {
			log.Fatalf("stage-cli: failed to load room: %v", err)
		}
	}

	options := staging.Options{
		StylePreset:     *style,
		FixWhiteBalance: *fixWB,
		WallDecorations: !*noDecor,
		IncludeTV:       *includeTV,
	}
	if room != nil && !room.IsReference(image.ID) {
		// Secondary angles render with the reference's settings; only
		// the white-balance fix stays per flag.
		options = staging.Defaults(room, image)
		options.FixWhiteBalance = *fixWB
		fmt.Printf("secondary angle: inheriting style %q from the room's reference\n", options.StylePreset)
	}

	job, err := api.CreateJob(ctx, room, image, client.JobRequest{
		RoomType: *roomType,
		Options:  options,
	})
	if err != nil {
		log.Fatalf("stage-cli: submission failed: %v", err)
	}
	fmt.Printf("job %s queued\n", job.ID)

	cfg := client.DefaultPollConfig()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if appCfg, err := config.LoadConfig(path); err == nil {
			cfg = client.PollConfigFrom(appCfg.Poller)
		}
	}
	cfg.MaxDuration = *timeout

	watch := api.WatchJob(ctx, job.ID, cfg, func(percent float64, step string) {
		fmt.Printf("  %3.0f%%  %s\n", percent, step)
	})

	done, err := watch.Wait()
	if err != nil {
		log.Fatalf("stage-cli: %v", err)
	}
	fmt.Printf("done: %s\n", done.ResultURL)
}
