package database

import (
	"database/sql"
	"errors"

	_ "github.com/lib/pq" // postgres driver
	"github.com/turt2live/dendrite-media-cleanup/common/rcontext"
	"github.com/turt2live/dendrite-media-cleanup/util"
)

type Database struct {
	conn       *sql.DB
	Media      *mediaTableStatements
	Thumbnails *thumbnailsTableStatements
	Profiles   *profilesTableStatements
}

// OpenDatabase connects to the media database. The connection is reused for
// every query the tool issues, one at a time.
func OpenDatabase(connectionString string) (*Database, error) {
	if !util.HasAnyPrefix(connectionString, []string{"postgres://", "postgresql://"}) {
		return nil, errors.New("connection string is not a postgres one")
	}

	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, errors.New("error connecting to db: " + err.Error())
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	d, err := OpenWith(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return d, nil
}

// OpenWith prepares the table accessors over an already-opened connection.
func OpenWith(conn *sql.DB) (*Database, error) {
	d := &Database{conn: conn}
	var err error

	if d.Media, err = prepareMediaTables(conn); err != nil {
		return nil, errors.New("failed to create media table accessor: " + err.Error())
	}
	if d.Thumbnails, err = prepareThumbnailsTables(conn); err != nil {
		return nil, errors.New("failed to create thumbnails table accessor: " + err.Error())
	}
	if d.Profiles, err = prepareProfilesTables(conn); err != nil {
		return nil, errors.New("failed to create profiles table accessor: " + err.Error())
	}

	return d, nil
}

func (d *Database) Close() error {
	return d.conn.Close()
}

// DeleteMediaRecords removes the thumbnail rows and the media row for a media
// id in a single transaction. Returns how many rows of each were removed.
func (d *Database) DeleteMediaRecords(ctx rcontext.RequestContext, mediaId string) (int64, int64, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, errors.New("error starting delete transaction: " + err.Error())
	}

	res, err := tx.StmtContext(ctx, d.Thumbnails.deleteThumbnailsForMedia).ExecContext(ctx, mediaId)
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, errors.New("error deleting thumbnail rows: " + err.Error())
	}
	numThumbnails, _ := res.RowsAffected()

	res, err = tx.StmtContext(ctx, d.Media.deleteMediaById).ExecContext(ctx, mediaId)
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, errors.New("error deleting media row: " + err.Error())
	}
	numMedia, _ := res.RowsAffected()

	if err = tx.Commit(); err != nil {
		return 0, 0, errors.New("error committing delete transaction: " + err.Error())
	}
	return numMedia, numThumbnails, nil
}
