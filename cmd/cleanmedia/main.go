package main

import (
	"flag"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/turt2live/dendrite-media-cleanup/common/config"
	"github.com/turt2live/dendrite-media-cleanup/common/logging"
	"github.com/turt2live/dendrite-media-cleanup/common/rcontext"
	"github.com/turt2live/dendrite-media-cleanup/common/version"
	"github.com/turt2live/dendrite-media-cleanup/database"
	"github.com/turt2live/dendrite-media-cleanup/mediarepo"
)

func main() {
	configPath := flag.String("config", "dendrite.yaml", "The path to the Dendrite configuration")
	logDirectory := flag.String("logDirectory", "-", "The directory to write rotating log files to, '-' for stdout only")
	mediaId := flag.String("mediaId", "", "Delete just the media with this id (no cleanup otherwise)")
	userId := flag.String("userId", "", "Delete all media uploaded by the local user '@user:domain' (no cleanup otherwise)")
	days := flag.Int("days", 30, "Keep remote media for this many days")
	local := flag.Bool("local", false, "Also purge media uploaded by local users")
	dryRun := flag.Bool("dryrun", false, "Don't actually delete any files or rows")
	quiet := flag.Bool("quiet", false, "Reduce output verbosity")
	debug := flag.Bool("debug", false, "Increase output verbosity")
	versionFlag := flag.Bool("version", false, "Prints the version and exits")
	flag.Parse()

	if *versionFlag {
		version.Print(false)
		return // exit 0
	}

	level := "info"
	if *debug {
		level = "debug"
	} else if *quiet {
		level = "warn"
	}
	if err := logging.Setup(*logDirectory, true, false, level); err != nil {
		panic(err)
	}
	version.Print(true)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if dsn := cfg.SentryDsn(); dsn != "" {
		if err = sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			logrus.Warn("Failed to set up sentry: ", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	connectionString, err := cfg.ConnectionString()
	if err != nil {
		fatal(err)
	}
	basePath, err := cfg.MediaBasePath()
	if err != nil {
		fatal(err)
	}

	ctx := rcontext.Initial().LogWithFields(logrus.Fields{"tool": "cleanmedia"})

	// Check the media directory before any catalog access happens
	if err = mediarepo.ValidateStorageRoot(ctx, basePath); err != nil {
		fatal(err)
	}

	db, err := database.OpenDatabase(connectionString)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	repo, err := mediarepo.New(ctx, basePath, db)
	if err != nil {
		fatal(err)
	}

	if *mediaId != "" {
		deleteSingleMedia(ctx, repo, *mediaId, *dryRun)
	} else if *userId != "" {
		deleteUserMedia(ctx, repo, *userId, *dryRun)
	} else {
		if err = repo.SanityCheckThumbnails(); err != nil {
			fatal(err)
		}
		if _, err = repo.PurgeOldMedia(*days, *local, *dryRun); err != nil {
			fatal(err)
		}
	}
}

// fatal reports the error to sentry (when configured) and exits nonzero.
// logrus.Fatal does not run deferred functions, so flush before it.
func fatal(err error) {
	sentry.CaptureException(err)
	sentry.Flush(2 * time.Second)
	logrus.Fatal(err)
}

func deleteSingleMedia(ctx rcontext.RequestContext, repo *mediarepo.MediaRepository, mediaId string, dryRun bool) {
	ctx.Log.Info("Attempting to delete media '" + mediaId + "'")
	media, err := repo.GetMedia(mediaId)
	if err != nil {
		fatal(err)
	}
	if media == nil {
		ctx.Log.Info("No media with id '" + mediaId + "' found")
		return
	}

	ctx.Log.Info("Found media with id '" + mediaId + "'")
	if !dryRun {
		media.Delete()
	}
}

func deleteUserMedia(ctx rcontext.RequestContext, repo *mediarepo.MediaRepository, userId string, dryRun bool) {
	ctx.Log.Info("Attempting to delete media by user '" + userId + "'")
	files, err := repo.GetMediaForUser(userId)
	if err != nil {
		fatal(err)
	}

	numDeleted := 0
	for _, media := range files {
		numDeleted++
		if dryRun {
			ctx.Log.Infof("Pretending to delete media id %s on path %s", media.MediaId, media.DirPath())
		} else {
			media.Delete()
		}
	}
	if dryRun {
		ctx.Log.Infof("%d files would have been deleted during the run", numDeleted)
	} else {
		ctx.Log.Infof("Deleted %d files during the run", numDeleted)
	}
}
