package mediarepo

import (
	"os"
	"path"
	"time"

	"github.com/turt2live/dendrite-media-cleanup/database"
	"github.com/turt2live/dendrite-media-cleanup/util"
)

// Media is a single catalog row together with its on-disk directory. Instances
// are views built fresh from the database on every load; once Delete succeeds
// the backing row is gone and the instance must not be reused.
type Media struct {
	MediaId    string
	CreatedAt  time.Time
	Base64Hash string
	UserId     string

	repo    *MediaRepository
	dirPath string
}

func newMedia(repo *MediaRepository, record *database.DbMedia) *Media {
	return &Media{
		MediaId: record.MediaId,
		// creation_ts is ms since the epoch, so convert to seconds
		CreatedAt:  time.Unix(record.CreationTs/1000, 0),
		Base64Hash: record.Base64Hash,
		UserId:     record.UserId,
		repo:       repo,
	}
}

// DirPath returns the directory holding the media file and its thumbnails, or
// an empty string when the media has no content hash on record. Dendrite nests
// the directory three levels deep under the media path: the first character of
// the hash, the second, then the remainder.
func (m *Media) DirPath() string {
	if m.Base64Hash == "" {
		return ""
	}
	if m.dirPath == "" {
		hash := m.Base64Hash
		second := ""
		remainder := ""
		if len(hash) > 1 {
			second = hash[1:2]
		}
		if len(hash) > 2 {
			remainder = hash[2:]
		}
		m.dirPath = path.Join(m.repo.storageRoot, hash[0:1], second, remainder)
	}
	return m.dirPath
}

// Exists reports whether the primary content file is physically present.
func (m *Media) Exists() bool {
	dir := m.DirPath()
	if dir == "" {
		return false
	}
	exists, _ := util.FileExists(path.Join(dir, "file"))
	return exists
}

// ThumbnailCount returns the number of thumbnail rows referencing this media.
func (m *Media) ThumbnailCount() (int, error) {
	return m.repo.db.Thumbnails.Prepare(m.repo.ctx).CountForMedia(m.MediaId)
}

// Delete removes the media directory and then, only if every file was removed,
// the thumbnail and media rows in one transaction. A filesystem failure leaves
// the catalog rows in place so the content is never stranded without a record.
func (m *Media) Delete() bool {
	if !m.removeFiles() {
		return false
	}

	numMedia, numThumbnails, err := m.repo.db.DeleteMediaRecords(m.repo.ctx, m.MediaId)
	if err != nil {
		m.repo.ctx.Log.Error("Failed to delete db entries for media id " + m.MediaId + ": " + err.Error())
		return false
	}
	m.repo.ctx.Log.Debugf("Deleted %d + %d db entries for media id %s", numMedia, numThumbnails, m.MediaId)
	return true
}

func (m *Media) removeFiles() bool {
	dir := m.DirPath()
	if dir == "" {
		m.repo.ctx.Log.Infof("No known path for media id '%s', cannot delete file", m.MediaId)
		return false
	}
	if !util.DirExists(dir) {
		m.repo.ctx.Log.Debugf("Path for media id '%s' is not a directory or does not exist, not deleting", m.MediaId)
		return false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		m.repo.ctx.Log.Errorf("Failed to delete files for %s: %s", m.MediaId, err.Error())
		return false
	}
	for _, entry := range entries {
		// note: nested directories are not expected here and not descended into
		var size int64
		if info, infoErr := entry.Info(); infoErr == nil && !info.IsDir() {
			size = info.Size()
		}
		if err = os.Remove(path.Join(dir, entry.Name())); err != nil {
			m.repo.ctx.Log.Errorf("Failed to delete files for %s: %s", m.MediaId, err.Error())
			return false
		}
		m.repo.reclaimedBytes += size
	}
	if err = os.Remove(dir); err != nil {
		m.repo.ctx.Log.Errorf("Failed to delete directory for %s: %s", m.MediaId, err.Error())
		return false
	}

	m.repo.ctx.Log.Debug("Deleted directory " + dir)
	return true
}
