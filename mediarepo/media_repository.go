package mediarepo

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/turt2live/dendrite-media-cleanup/common/rcontext"
	"github.com/turt2live/dendrite-media-cleanup/database"
	"github.com/turt2live/dendrite-media-cleanup/util"
)

// MediaRepository coordinates the media database with the on-disk media store
// for one maintenance run. It is not safe for concurrent use and assumes no
// other writer is mutating the store while it runs.
type MediaRepository struct {
	storageRoot string
	db          *database.Database
	ctx         rcontext.RequestContext

	// Media ids currently referenced as profile avatars. Populated by
	// GetAvatarMediaIds, read by PurgeOldMedia.
	avatarMediaIds []string

	reclaimedBytes int64
}

// ValidateStorageRoot checks the media directory without needing a catalog
// connection, so configuration problems surface before any catalog access.
// A relative path is fragile but allowed, with a warning.
func ValidateStorageRoot(ctx rcontext.RequestContext, storageRoot string) error {
	if !path.IsAbs(storageRoot) {
		ctx.Log.Warn("The media path is relative, make sure you run this tool in the correct directory!")
	}
	if !util.DirExists(storageRoot) {
		return errors.New("the configured media directory cannot be found")
	}
	return nil
}

func New(ctx rcontext.RequestContext, storageRoot string, db *database.Database) (*MediaRepository, error) {
	if err := ValidateStorageRoot(ctx, storageRoot); err != nil {
		return nil, err
	}

	return &MediaRepository{
		storageRoot: storageRoot,
		db:          db,
		ctx:         ctx,
	}, nil
}

// GetMedia returns the media with the given id, or nil if there is none.
func (r *MediaRepository) GetMedia(mediaId string) (*Media, error) {
	record, err := r.db.Media.Prepare(r.ctx).GetById(mediaId)
	if err != nil || record == nil {
		return nil, err
	}
	return newMedia(r, record), nil
}

// GetMediaForUser returns all media uploaded by a user ("@user:domain").
func (r *MediaRepository) GetMediaForUser(userId string) ([]*Media, error) {
	records, err := r.db.Media.Prepare(r.ctx).GetByUserId(userId)
	if err != nil {
		return nil, err
	}
	return r.wrapRecords(records), nil
}

// GetAllMedia returns remote media, or every media row when includeLocal is
// true.
func (r *MediaRepository) GetAllMedia(includeLocal bool) ([]*Media, error) {
	records, err := r.db.Media.Prepare(r.ctx).GetAll(includeLocal)
	if err != nil {
		return nil, err
	}
	return r.wrapRecords(records), nil
}

func (r *MediaRepository) wrapRecords(records []*database.DbMedia) []*Media {
	media := make([]*Media, 0, len(records))
	for _, record := range records {
		media = append(media, newMedia(r, record))
	}
	return media
}

// GetAvatarMediaIds returns the media ids currently used as profile avatars
// and caches them for the rest of the run. Those must survive a purge.
func (r *MediaRepository) GetAvatarMediaIds() ([]string, error) {
	urls, err := r.db.Profiles.Prepare(r.ctx).GetAvatarUrls()
	if err != nil {
		return nil, err
	}

	mediaIds := make([]string, 0, len(urls))
	for _, url := range urls {
		// mxc://matrix.org/6e627f4c538563
		idx := strings.LastIndex(url, "/")
		if idx < 0 {
			r.ctx.Log.Warnf("No slash in avatar url '%s'!", url)
			continue
		}
		mediaIds = append(mediaIds, url[idx+1:])
	}
	r.avatarMediaIds = mediaIds
	return mediaIds, nil
}

// SanityCheckThumbnails reports thumbnail rows that do not refer to media.
// They are logged, not repaired.
func (r *MediaRepository) SanityCheckThumbnails() error {
	count, err := r.db.Thumbnails.Prepare(r.ctx).CountOrphaned()
	if err != nil {
		return err
	}
	if count > 0 {
		r.ctx.Log.Errorf("You have %d thumbnails in your db that do not refer to media. This needs fixing (we don't do that)!", count)
	}
	return nil
}

// PurgeOldMedia deletes media older than the given number of days, skipping
// anything referenced as a profile avatar. The returned count is the number of
// media matched for deletion; individual delete failures are logged and do not
// reduce it, and do not stop the run.
func (r *MediaRepository) PurgeOldMedia(days int, includeLocal bool, dryRun bool) (int, error) {
	if includeLocal {
		// populate the avatar cache so we don't delete current avatars
		if _, err := r.GetAvatarMediaIds(); err != nil {
			return 0, err
		}
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	r.ctx.Log.Info("Deleting remote media older than " + cutoff.Format(time.RFC1123))

	candidates, err := r.GetAllMedia(includeLocal)
	if err != nil {
		return 0, err
	}

	numDeleted := 0
	for _, media := range candidates {
		if r.isAvatar(media.MediaId) {
			continue
		}
		if !media.CreatedAt.Before(cutoff) {
			continue
		}

		numDeleted++
		if dryRun { // the great pretender
			r.ctx.Log.Infof("Pretending to delete media id %s on path %s", media.MediaId, media.DirPath())
			if !media.Exists() {
				r.ctx.Log.Infof("Media id %s does not physically exist (path %s)", media.MediaId, media.DirPath())
			}
		} else {
			media.Delete()
		}
	}

	if dryRun {
		r.ctx.Log.Infof("%d files would have been deleted during the run", numDeleted)
	} else {
		r.ctx.Log.Infof("Deleted %d files during the run, reclaiming %s", numDeleted, humanize.Bytes(uint64(r.reclaimedBytes)))
	}
	return numDeleted, nil
}

// ReclaimedBytes is the total size of the files removed so far this run.
func (r *MediaRepository) ReclaimedBytes() int64 {
	return r.reclaimedBytes
}

func (r *MediaRepository) isAvatar(mediaId string) bool {
	for _, id := range r.avatarMediaIds {
		if id == mediaId {
			return true
		}
	}
	return false
}
