package database

import (
	"database/sql"
	"errors"

	"github.com/turt2live/dendrite-media-cleanup/common/rcontext"
)

type DbMedia struct {
	MediaId    string
	CreationTs int64 // epoch milliseconds
	Base64Hash string
	UserId     string
}

const selectMediaById = "SELECT media_id, creation_ts, base64hash, user_id FROM mediaapi_media_repository WHERE media_id = $1;"
const selectMediaByUserId = "SELECT media_id, creation_ts, base64hash, user_id FROM mediaapi_media_repository WHERE user_id = $1;"
const selectAllMedia = "SELECT media_id, creation_ts, base64hash, user_id FROM mediaapi_media_repository;"
const selectRemoteMedia = "SELECT media_id, creation_ts, base64hash, user_id FROM mediaapi_media_repository WHERE user_id = '';"
const deleteMediaById = "DELETE FROM mediaapi_media_repository WHERE media_id = $1;"

type mediaTableStatements struct {
	selectMediaById     *sql.Stmt
	selectMediaByUserId *sql.Stmt
	selectAllMedia      *sql.Stmt
	selectRemoteMedia   *sql.Stmt
	deleteMediaById     *sql.Stmt
}

type mediaTableWithContext struct {
	statements *mediaTableStatements
	ctx        rcontext.RequestContext
}

func prepareMediaTables(db *sql.DB) (*mediaTableStatements, error) {
	var err error
	var stmts = &mediaTableStatements{}

	if stmts.selectMediaById, err = db.Prepare(selectMediaById); err != nil {
		return nil, errors.New("error preparing selectMediaById: " + err.Error())
	}
	if stmts.selectMediaByUserId, err = db.Prepare(selectMediaByUserId); err != nil {
		return nil, errors.New("error preparing selectMediaByUserId: " + err.Error())
	}
	if stmts.selectAllMedia, err = db.Prepare(selectAllMedia); err != nil {
		return nil, errors.New("error preparing selectAllMedia: " + err.Error())
	}
	if stmts.selectRemoteMedia, err = db.Prepare(selectRemoteMedia); err != nil {
		return nil, errors.New("error preparing selectRemoteMedia: " + err.Error())
	}
	if stmts.deleteMediaById, err = db.Prepare(deleteMediaById); err != nil {
		return nil, errors.New("error preparing deleteMediaById: " + err.Error())
	}

	return stmts, nil
}

func (s *mediaTableStatements) Prepare(ctx rcontext.RequestContext) *mediaTableWithContext {
	return &mediaTableWithContext{
		statements: s,
		ctx:        ctx,
	}
}

func (s *mediaTableWithContext) scanRows(rows *sql.Rows, err error) ([]*DbMedia, error) {
	results := make([]*DbMedia, 0)
	if err != nil {
		if err == sql.ErrNoRows {
			return results, nil
		}
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		val := &DbMedia{}
		if err = rows.Scan(&val.MediaId, &val.CreationTs, &val.Base64Hash, &val.UserId); err != nil {
			return nil, err
		}
		results = append(results, val)
	}

	return results, nil
}

func (s *mediaTableWithContext) GetById(mediaId string) (*DbMedia, error) {
	row := s.statements.selectMediaById.QueryRowContext(s.ctx, mediaId)
	val := &DbMedia{}
	err := row.Scan(&val.MediaId, &val.CreationTs, &val.Base64Hash, &val.UserId)
	if err == sql.ErrNoRows {
		err = nil
		val = nil
	}
	return val, err
}

func (s *mediaTableWithContext) GetByUserId(userId string) ([]*DbMedia, error) {
	return s.scanRows(s.statements.selectMediaByUserId.QueryContext(s.ctx, userId))
}

// GetAll returns every media row, or only the remotely-originated rows when
// includeLocal is false. An empty user_id marks remote media in Dendrite.
func (s *mediaTableWithContext) GetAll(includeLocal bool) ([]*DbMedia, error) {
	stmt := s.statements.selectRemoteMedia
	if includeLocal {
		stmt = s.statements.selectAllMedia
	}
	return s.scanRows(stmt.QueryContext(s.ctx))
}
