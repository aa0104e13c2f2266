package database

import (
	"database/sql"
	"errors"

	"github.com/turt2live/dendrite-media-cleanup/common/rcontext"
)

const selectAvatarUrls = "SELECT avatar_url FROM userapi_profiles WHERE avatar_url > '';"

type profilesTableStatements struct {
	selectAvatarUrls *sql.Stmt
}

type profilesTableWithContext struct {
	statements *profilesTableStatements
	ctx        rcontext.RequestContext
}

func prepareProfilesTables(db *sql.DB) (*profilesTableStatements, error) {
	var err error
	var stmts = &profilesTableStatements{}

	if stmts.selectAvatarUrls, err = db.Prepare(selectAvatarUrls); err != nil {
		return nil, errors.New("error preparing selectAvatarUrls: " + err.Error())
	}

	return stmts, nil
}

func (s *profilesTableStatements) Prepare(ctx rcontext.RequestContext) *profilesTableWithContext {
	return &profilesTableWithContext{
		statements: s,
		ctx:        ctx,
	}
}

func (s *profilesTableWithContext) GetAvatarUrls() ([]string, error) {
	results := make([]string, 0)
	rows, err := s.statements.selectAvatarUrls.QueryContext(s.ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return results, nil
		}
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		val := ""
		if err = rows.Scan(&val); err != nil {
			return nil, err
		}
		results = append(results, val)
	}

	return results, nil
}
