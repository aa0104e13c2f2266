package database

import (
	"database/sql"
	"errors"

	"github.com/turt2live/dendrite-media-cleanup/common/rcontext"
)

const countThumbnailsForMedia = "SELECT COUNT(media_id) FROM mediaapi_thumbnail WHERE media_id = $1;"
const countOrphanedThumbnails = "SELECT COUNT(media_id) FROM mediaapi_thumbnail WHERE media_id NOT IN (SELECT media_id FROM mediaapi_media_repository);"
const deleteThumbnailsForMedia = "DELETE FROM mediaapi_thumbnail WHERE media_id = $1;"

type thumbnailsTableStatements struct {
	countThumbnailsForMedia  *sql.Stmt
	countOrphanedThumbnails  *sql.Stmt
	deleteThumbnailsForMedia *sql.Stmt
}

type thumbnailsTableWithContext struct {
	statements *thumbnailsTableStatements
	ctx        rcontext.RequestContext
}

func prepareThumbnailsTables(db *sql.DB) (*thumbnailsTableStatements, error) {
	var err error
	var stmts = &thumbnailsTableStatements{}

	if stmts.countThumbnailsForMedia, err = db.Prepare(countThumbnailsForMedia); err != nil {
		return nil, errors.New("error preparing countThumbnailsForMedia: " + err.Error())
	}
	if stmts.countOrphanedThumbnails, err = db.Prepare(countOrphanedThumbnails); err != nil {
		return nil, errors.New("error preparing countOrphanedThumbnails: " + err.Error())
	}
	if stmts.deleteThumbnailsForMedia, err = db.Prepare(deleteThumbnailsForMedia); err != nil {
		return nil, errors.New("error preparing deleteThumbnailsForMedia: " + err.Error())
	}

	return stmts, nil
}

func (s *thumbnailsTableStatements) Prepare(ctx rcontext.RequestContext) *thumbnailsTableWithContext {
	return &thumbnailsTableWithContext{
		statements: s,
		ctx:        ctx,
	}
}

func (s *thumbnailsTableWithContext) CountForMedia(mediaId string) (int, error) {
	row := s.statements.countThumbnailsForMedia.QueryRowContext(s.ctx, mediaId)
	val := 0
	err := row.Scan(&val)
	if err == sql.ErrNoRows {
		err = nil
		val = 0
	}
	return val, err
}

// CountOrphaned counts thumbnail rows whose media id has no media row. Those
// rows are an inconsistency this tool reports but never repairs.
func (s *thumbnailsTableWithContext) CountOrphaned() (int, error) {
	row := s.statements.countOrphanedThumbnails.QueryRowContext(s.ctx)
	val := 0
	err := row.Scan(&val)
	if err == sql.ErrNoRows {
		err = nil
		val = 0
	}
	return val, err
}
